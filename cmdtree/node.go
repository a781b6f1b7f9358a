// Package cmdtree represents shell commands as immutable trees.
//
// A tree is built from literal [StringNode] arguments, [CommandNode]
// commands, [InlineNode] commands spliced into a parent's argument
// list, and [Variable] placeholders bound later via [Resolve]. Trees
// compose structurally: [WrapRemote] nests a whole command inside an
// ssh invocation, and variable resolution still reaches inside the
// wrapped tree. Once a tree is ground (no variables left), [Flatten]
// and [Argv] lower it to an executable form.
package cmdtree

// Node is one element of a command tree.
type Node interface {
	// Accept rebuilds the node with each child passed through v.
	// Leaves return themselves unchanged.
	Accept(v Visitor) (Node, error)
}

// Visitor transforms nodes during a [Walk] traversal. A Visitor's
// Visit handles the node itself and calls Accept to continue into
// the node's children.
type Visitor interface {
	Visit(n Node) (Node, error)
}

// Walk applies v to the tree rooted at t and returns the transformed
// tree. The input tree is never mutated.
func Walk(t Node, v Visitor) (Node, error) {
	return v.Visit(t)
}

// StringNode is an opaque literal argument. Always a leaf.
type StringNode struct {
	Value string
}

// String returns a new literal argument node.
func String(v string) *StringNode { return &StringNode{Value: v} }

func (s *StringNode) Accept(Visitor) (Node, error) { return s, nil }

// CommandNode is a command: an executable node plus argument nodes.
// The executable must resolve to a [StringNode] before the tree can
// be flattened.
type CommandNode struct {
	Exe  Node
	Args []Node
}

func (c *CommandNode) Accept(v Visitor) (Node, error) {
	exe, err := v.Visit(c.Exe)
	if err != nil {
		return nil, err
	}
	args := make([]Node, len(c.Args))
	for i, a := range c.Args {
		if args[i], err = v.Visit(a); err != nil {
			return nil, err
		}
	}
	return &CommandNode{Exe: exe, Args: args}, nil
}

// InlineNode is a command whose executable and arguments are spliced
// into the parent's argument list at flatten time, rather than being
// quoted into a single token. It supports compositions like "run
// command A with command B inlined as several of A's arguments".
type InlineNode struct {
	CommandNode
}

func (n *InlineNode) Accept(v Visitor) (Node, error) {
	rebuilt, err := n.CommandNode.Accept(v)
	if err != nil {
		return nil, err
	}
	cn, ok := rebuilt.(*CommandNode)
	if !ok {
		return rebuilt, nil
	}
	return &InlineNode{CommandNode: *cn}, nil
}

// VarKind documents when a [Variable] is expected to be bound.
// The kinds carry no behavioral difference at this layer.
type VarKind int

const (
	// RuntimeVar is bound at run time,
	// e.g. a thread count or input size.
	RuntimeVar VarKind = iota
	// BuildVar is bound at build time,
	// e.g. a compiler optimization level.
	BuildVar
	// SetupVar is bound at setup time,
	// e.g. a scheduler selection.
	SetupVar
)

func (k VarKind) String() string {
	switch k {
	case RuntimeVar:
		return "runtime"
	case BuildVar:
		return "build"
	case SetupVar:
		return "setup"
	}
	return "unknown"
}

// Variable is a placeholder leaf replaced by [Resolve]. Two distinct
// Variable instances in one tree must not share a name; reusing the
// same instance in several positions is allowed.
type Variable struct {
	Name string
	Kind VarKind
}

func (vr *Variable) Accept(Visitor) (Node, error) { return vr, nil }

// RuntimeVariable returns a placeholder bound at run time.
func RuntimeVariable(name string) *Variable {
	return &Variable{Name: name, Kind: RuntimeVar}
}

// BuildVariable returns a placeholder bound at build time.
func BuildVariable(name string) *Variable {
	return &Variable{Name: name, Kind: BuildVar}
}

// SetupVariable returns a placeholder bound at setup time.
func SetupVariable(name string) *Variable {
	return &Variable{Name: name, Kind: SetupVar}
}
