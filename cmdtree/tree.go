package cmdtree

import (
	"fmt"
	"strconv"

	"github.com/benchpipe/benchpipe/internal/sh"
)

// Command builds a command node from a program spec and arguments.
// If program contains whitespace it is tokenized with shell-lexical
// rules and the extra tokens become leading arguments:
//
//	Command("ssh -p 22 host", cmd)  ≡  Command("ssh",
//	    String("-p"), String("22"), String("host"), cmd)
func Command(program string, args ...Node) (*CommandNode, error) {
	tokens, err := sh.Split(program)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("cmdtree: empty program")
	}
	lead := make([]Node, 0, len(tokens)-1+len(args))
	for _, tok := range tokens[1:] {
		lead = append(lead, String(tok))
	}
	return &CommandNode{
		Exe:  String(tokens[0]),
		Args: append(lead, args...),
	}, nil
}

// Args converts plain strings to literal argument nodes.
func Args(ss ...string) []Node {
	nodes := make([]Node, len(ss))
	for i, s := range ss {
		nodes[i] = String(s)
	}
	return nodes
}

// Inline marks c for splicing into its parent's argument list.
func Inline(c *CommandNode) *InlineNode {
	return &InlineNode{CommandNode: *c}
}

// WrapRemote wraps t so that it executes on host via ssh. The wrap is
// structural: t stays a subtree, so later variable resolution still
// reaches inside it.
func WrapRemote(t Node, host string, port int) *CommandNode {
	return &CommandNode{
		Exe: String("ssh"),
		Args: []Node{
			String(host),
			String("-p"), String(strconv.Itoa(port)),
			String("-t"),
			t,
		},
	}
}

type resolver struct {
	bindings map[string]string
}

func (r *resolver) Visit(n Node) (Node, error) {
	if vr, ok := n.(*Variable); ok {
		val, ok := r.bindings[vr.Name]
		if !ok {
			return nil, &UnresolvedVariableError{Name: vr.Name}
		}
		return String(val), nil
	}
	return n.Accept(r)
}

// Resolve replaces every [Variable] in t with its binding. It fails
// with [UnresolvedVariableError] if any variable has no binding and
// with [DuplicateVariableError] if two distinct variables share a
// name; a partially-resolved tree is never returned.
func Resolve(t Node, bindings map[string]string) (Node, error) {
	if err := CheckDuplicates(t); err != nil {
		return nil, err
	}
	return Walk(t, &resolver{bindings: bindings})
}

type finder struct {
	seen map[*Variable]bool
	vars []*Variable
}

func (f *finder) Visit(n Node) (Node, error) {
	if vr, ok := n.(*Variable); ok && !f.seen[vr] {
		f.seen[vr] = true
		f.vars = append(f.vars, vr)
	}
	return n.Accept(f)
}

// Variables returns every distinct [Variable] instance in t, in
// depth-first order.
func Variables(t Node) []*Variable {
	f := &finder{seen: make(map[*Variable]bool)}
	// Leaf visits cannot fail.
	_, _ = Walk(t, f)
	return f.vars
}

// CheckDuplicates fails with [DuplicateVariableError] if two distinct
// [Variable] instances in t share a name. The same instance appearing
// in several positions is fine; two objects with one name would race
// for the same binding.
func CheckDuplicates(t Node) error {
	names := make(map[string]bool)
	for _, vr := range Variables(t) {
		if names[vr.Name] {
			return &DuplicateVariableError{Name: vr.Name}
		}
		names[vr.Name] = true
	}
	return nil
}

type groundChecker struct{}

func (g groundChecker) Visit(n Node) (Node, error) {
	switch n.(type) {
	case *StringNode, *CommandNode, *InlineNode:
		return n.Accept(g)
	}
	return nil, &NotGroundError{Kind: fmt.Sprintf("%T", n)}
}

// VerifyGround fails with [NotGroundError] unless every node in t is
// a string or command node, i.e. the tree is executable.
func VerifyGround(t Node) error {
	_, err := Walk(t, groundChecker{})
	return err
}

// Argv lowers a ground tree to an argument vector. Inline commands
// are spliced into their parent's arguments; nested non-inline
// commands collapse into a single shell-quoted token.
func Argv(t Node) ([]string, error) {
	if err := VerifyGround(t); err != nil {
		return nil, err
	}
	return tokens(t)
}

// Flatten lowers a ground tree to a single shell command string with
// every token quoted.
func Flatten(t Node) (string, error) {
	argv, err := Argv(t)
	if err != nil {
		return "", err
	}
	return sh.Join(argv), nil
}

func tokens(t Node) ([]string, error) {
	switch n := t.(type) {
	case *StringNode:
		return []string{n.Value}, nil
	case *InlineNode:
		return commandTokens(&n.CommandNode)
	case *CommandNode:
		return commandTokens(n)
	}
	return nil, &NotGroundError{Kind: fmt.Sprintf("%T", t)}
}

func commandTokens(c *CommandNode) ([]string, error) {
	exe, err := singleToken(c.Exe)
	if err != nil {
		return nil, err
	}
	out := []string{exe}
	for _, a := range c.Args {
		switch n := a.(type) {
		case *StringNode:
			out = append(out, n.Value)
		case *InlineNode:
			spliced, err := commandTokens(&n.CommandNode)
			if err != nil {
				return nil, err
			}
			out = append(out, spliced...)
		case *CommandNode:
			tok, err := singleToken(n)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
		default:
			return nil, &NotGroundError{Kind: fmt.Sprintf("%T", a)}
		}
	}
	return out, nil
}

// singleToken renders n as one token: literals pass through, whole
// commands collapse to their quoted flat form.
func singleToken(n Node) (string, error) {
	if s, ok := n.(*StringNode); ok {
		return s.Value, nil
	}
	ts, err := tokens(n)
	if err != nil {
		return "", err
	}
	return sh.Join(ts), nil
}
