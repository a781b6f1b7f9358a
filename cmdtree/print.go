package cmdtree

import "strings"

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(s string) {
	p.sb.WriteString(strings.Repeat("|", p.indent))
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
}

func (p *printer) Visit(n Node) (Node, error) {
	switch t := n.(type) {
	case *StringNode:
		p.line("StringNode")
		p.indent++
		p.line(t.Value)
		p.indent--
	case *InlineNode:
		p.line("InlineNode")
		p.indent++
		_, _ = t.Accept(p)
		p.indent--
	case *CommandNode:
		p.line("CommandNode")
		p.indent++
		_, _ = t.Accept(p)
		p.indent--
	case *Variable:
		p.line("Variable(" + t.Kind.String() + ")")
		p.indent++
		p.line(t.Name)
		p.indent--
	default:
		p.line("Node")
	}
	return n, nil
}

// Sprint renders t as an indented tree, one node per line, for
// debugging command construction.
func Sprint(t Node) string {
	p := new(printer)
	_, _ = Walk(t, p)
	return p.sb.String()
}
