package axtree

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// Options controls one projection.
type Options struct {
	Interactive bool   `json:"interactive,omitempty"`
	Compact     bool   `json:"compact,omitempty"`
	Depth       *int   `json:"depth,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Node is one materialised node of a projection.
type Node struct {
	Ref         string  `json:"ref"`
	Role        string  `json:"role,omitempty"`
	Name        string  `json:"name,omitempty"`
	Level       int     `json:"level,omitempty"`
	Checked     *bool   `json:"checked,omitempty"`
	Disabled    bool    `json:"disabled,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Value       *string `json:"value,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// Projection is the result of projecting a subtree: either exactly one
// materialised node, or the promoted nodes of an elided root (possibly
// none).
type Projection struct {
	node     *Node
	promoted []*Node
}

// Single wraps one materialised node.
func Single(n *Node) Projection { return Projection{node: n} }

// Promoted wraps the children of an elided node.
func Promoted(nodes []*Node) Projection { return Projection{promoted: nodes} }

// Node returns the materialised root, if the projection is one.
func (p Projection) Node() (*Node, bool) { return p.node, p.node != nil }

// Nodes returns the top-level nodes whatever the shape.
func (p Projection) Nodes() []*Node {
	if p.node != nil {
		return []*Node{p.node}
	}
	return p.promoted
}

// IsEmpty reports a projection with no nodes at all.
func (p Projection) IsEmpty() bool { return p.node == nil && len(p.promoted) == 0 }

// MarshalJSON encodes one node as an object, promoted nodes as an array and
// an empty projection as null.
func (p Projection) MarshalJSON() ([]byte, error) {
	switch {
	case p.node != nil:
		return json.Marshal(p.node)
	case len(p.promoted) > 0:
		return json.Marshal(p.promoted)
	default:
		return []byte("null"), nil
	}
}

// textRoles carry value and placeholder.
var textRoles = map[string]bool{
	"textbox":    true,
	"searchbox":  true,
	"combobox":   true,
	"spinbutton": true,
}

// frame is one element on the explicit traversal stack.
type frame struct {
	n        *html.Node
	depth    int
	next     *html.Node
	children []*Node
}

// Project walks the subtree at root in post-order and returns its
// projection. Refs are pinned in reg as nodes materialise, so the numbering
// follows completion order and is stable for an unchanged tree, and every
// returned ref resolves until the next Clear whatever the registry limit.
//
// The walk uses an explicit stack; tree depth is bounded only by memory.
func Project(doc *dom.Document, root *html.Node, opts Options, reg *Registry) Projection {
	p := projector{doc: doc, opts: opts, reg: reg}
	return p.run(root)
}

type projector struct {
	doc  *dom.Document
	opts Options
	reg  *Registry
}

func (p *projector) admit(n *html.Node, depth int) bool {
	if !Visible(p.doc, n) {
		return false
	}
	return p.opts.Depth == nil || depth <= *p.opts.Depth
}

func (p *projector) run(root *html.Node) Projection {
	if !p.admit(root, 0) {
		return Projection{}
	}
	stack := []*frame{{n: root, next: firstElement(root.FirstChild)}}
	for {
		top := stack[len(stack)-1]
		if c := top.next; c != nil {
			top.next = firstElement(c.NextSibling)
			if p.admit(c, top.depth+1) {
				stack = append(stack, &frame{n: c, depth: top.depth + 1, next: firstElement(c.FirstChild)})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		res := p.finish(top)
		if len(stack) == 0 {
			return res
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, res.Nodes()...)
	}
}

// finish decides whether a fully visited node materialises or promotes its
// children.
func (p *projector) finish(f *frame) Projection {
	n := f.n
	role := Role(n)
	name := Name(p.doc, n)
	interactive := p.isInteractive(n, role)

	if p.opts.Interactive && !interactive && role == "" {
		return Promoted(f.children)
	}
	if p.opts.Compact && role == "" && name == "" && !interactive {
		return Promoted(f.children)
	}
	if role == "" && name == "" && !interactive && len(f.children) == 0 {
		return Projection{}
	}

	out := &Node{
		Ref:      p.reg.pin(n),
		Role:     role,
		Name:     name,
		Disabled: ariaFlag(n, "disabled"),
		Required: ariaFlag(n, "required"),
		Children: f.children,
	}
	if role == "heading" {
		out.Level = HeadingLevel(n)
	}
	switch role {
	case "checkbox", "radio", "switch":
		checked := p.checked(n)
		out.Checked = &checked
	}
	if textRoles[role] {
		inf := p.doc.Info(n)
		if inf.HasValue && inf.Value != "" {
			v := inf.Value
			out.Value = &v
		}
		out.Placeholder, _ = dom.Attr(n, "placeholder")
	}
	return Single(out)
}

func (p *projector) isInteractive(n *html.Node, role string) bool {
	if interactiveRoles[role] || p.doc.Info(n).Clickable || IsEditable(n) {
		return true
	}
	v, ok := dom.Attr(n, "tabindex")
	return ok && strings.TrimSpace(v) == "0"
}

func (p *projector) checked(n *html.Node) bool {
	if IsNativeCheckable(n) {
		return p.doc.Info(n).Checked
	}
	v, _ := dom.Attr(n, "aria-checked")
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// ariaFlag reads a boolean attribute or its aria- equivalent.
func ariaFlag(n *html.Node, name string) bool {
	if dom.HasAttr(n, name) {
		return true
	}
	v, _ := dom.Attr(n, "aria-"+name)
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func firstElement(n *html.Node) *html.Node {
	for ; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}
