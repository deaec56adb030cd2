package axtree

import (
	"strconv"
	"strings"
)

// Render flattens a projection into one line per node:
//
//	<indent>- <role> "<name>" [ref=@eN] [level=N] [checked|unchecked] [disabled] [required] [value="…"] [placeholder="…"]
//
// Indent is two spaces per depth. Role and name are left out when absent.
// Top-level nodes render at depth zero.
func Render(p Projection) string {
	type item struct {
		n     *Node
		depth int
	}
	top := p.Nodes()
	stack := make([]item, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, item{top[i], 0})
	}

	var lines []string
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lines = append(lines, renderLine(it.n, it.depth))
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Children[i], it.depth + 1})
		}
	}
	return strings.Join(lines, "\n")
}

func renderLine(n *Node, depth int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("-")
	if n.Role != "" {
		b.WriteString(" ")
		b.WriteString(n.Role)
	}
	if n.Name != "" {
		b.WriteString(` "`)
		b.WriteString(n.Name)
		b.WriteString(`"`)
	}
	b.WriteString(" [ref=")
	b.WriteString(n.Ref)
	b.WriteString("]")
	if n.Level > 0 {
		b.WriteString(" [level=")
		b.WriteString(strconv.Itoa(n.Level))
		b.WriteString("]")
	}
	if n.Checked != nil {
		if *n.Checked {
			b.WriteString(" [checked]")
		} else {
			b.WriteString(" [unchecked]")
		}
	}
	if n.Disabled {
		b.WriteString(" [disabled]")
	}
	if n.Required {
		b.WriteString(" [required]")
	}
	if n.Value != nil {
		b.WriteString(` [value="`)
		b.WriteString(*n.Value)
		b.WriteString(`"]`)
	}
	if n.Placeholder != "" {
		b.WriteString(` [placeholder="`)
		b.WriteString(n.Placeholder)
		b.WriteString(`"]`)
	}
	return b.String()
}
