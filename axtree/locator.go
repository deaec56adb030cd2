package axtree

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/dom"
)

// Match is the answer to one locator query. Only the selected match gets a
// ref; Count is the number of candidates before index selection.
type Match struct {
	Ref         string `json:"ref"`
	Role        string `json:"role,omitempty"`
	Name        string `json:"name,omitempty"`
	Text        string `json:"text,omitempty"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	TagName     string `json:"tagName"`
	Count       int    `json:"count"`

	Node *html.Node `json:"-"`
}

// Locator answers semantic queries against the live document. It reads the
// tree directly and does not depend on any prior snapshot.
type Locator struct {
	doc *dom.Document
	reg *Registry
}

// NewLocator binds a locator to a document and the registry it allocates
// refs from.
func NewLocator(doc *dom.Document, reg *Registry) *Locator {
	return &Locator{doc: doc, reg: reg}
}

// FindByRole matches explicit-role nodes first, then nodes whose implicit
// role matches and that carry no role attribute. A non-empty name keeps
// only nodes whose accessible name contains it, ignoring case.
func (l *Locator) FindByRole(role, name string, index int) (*Match, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return nil, Errorf(CodeInvalidArgument, "role is required")
	}
	want := strings.ToLower(dom.NormalizeSpace(name))

	var explicit, implicit []*html.Node
	for n := range dom.Elements(l.doc.Root) {
		if r, ok := ExplicitRole(n); ok {
			if r == role {
				explicit = append(explicit, n)
			}
			continue
		}
		if ImplicitRole(n) == role {
			implicit = append(implicit, n)
		}
	}

	var found []*html.Node
	for _, n := range append(explicit, implicit...) {
		if !Visible(l.doc, n) {
			continue
		}
		if want != "" && !strings.Contains(strings.ToLower(Name(l.doc, n)), want) {
			continue
		}
		found = append(found, n)
	}

	desc := "role " + quote(role)
	if name != "" {
		desc += " and name " + quote(name)
	}
	n, err := pick(found, index, desc)
	if err != nil {
		return nil, err
	}
	return l.match(n, len(found), func(m *Match) {
		m.Role = role
		m.Name = Name(l.doc, n)
	}), nil
}

// FindByText matches visible nodes whose text equals text (exact) or
// contains it ignoring case. A node with an accepted descendant is dropped
// in favour of that descendant.
func (l *Locator) FindByText(text string, exact bool, index int) (*Match, error) {
	want := dom.NormalizeSpace(text)
	if want == "" {
		return nil, Errorf(CodeInvalidArgument, "text is required")
	}
	lower := strings.ToLower(want)

	var accepted []*html.Node
	for n := range dom.Elements(l.doc.Body()) {
		if !Visible(l.doc, n) {
			continue
		}
		got := dom.NormalizeSpace(dom.TextContent(n))
		if (exact && got == want) || (!exact && strings.Contains(strings.ToLower(got), lower)) {
			accepted = append(accepted, n)
		}
	}

	inner := make(map[*html.Node]bool)
	for _, n := range accepted {
		for p := n.Parent; p != nil; p = p.Parent {
			if inner[p] {
				break
			}
			inner[p] = true
		}
	}
	var found []*html.Node
	for _, n := range accepted {
		if !inner[n] {
			found = append(found, n)
		}
	}

	n, err := pick(found, index, "text "+quote(text))
	if err != nil {
		return nil, err
	}
	return l.match(n, len(found), func(m *Match) {
		m.Text = truncate(dom.NormalizeSpace(dom.TextContent(n)), maxTextName)
	}), nil
}

// labelable elements a wrapping <label> can point at.
var labelable = map[atom.Atom]bool{
	atom.Input:    true,
	atom.Select:   true,
	atom.Textarea: true,
	atom.Button:   true,
	atom.Meter:    true,
	atom.Output:   true,
	atom.Progress: true,
}

// FindByLabel unions the targets of matching <label> elements, nodes whose
// aria-label matches, and nodes whose placeholder matches, in that order.
func (l *Locator) FindByLabel(label string, index int) (*Match, error) {
	want := strings.ToLower(dom.NormalizeSpace(label))
	if want == "" {
		return nil, Errorf(CodeInvalidArgument, "label is required")
	}
	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(dom.NormalizeSpace(s)), want)
	}

	var candidates []*html.Node
	for n := range dom.Elements(l.doc.Root) {
		if n.DataAtom != atom.Label || !contains(dom.TextContent(n)) {
			continue
		}
		if t := l.labelTarget(n); t != nil {
			candidates = append(candidates, t)
		}
	}
	for _, attr := range [...]string{"aria-label", "placeholder"} {
		for n := range dom.Elements(l.doc.Root) {
			if v, ok := dom.Attr(n, attr); ok && contains(v) {
				candidates = append(candidates, n)
			}
		}
	}

	seen := make(map[*html.Node]bool)
	var found []*html.Node
	for _, n := range candidates {
		if seen[n] || !Visible(l.doc, n) {
			continue
		}
		seen[n] = true
		found = append(found, n)
	}

	n, err := pick(found, index, "label "+quote(label))
	if err != nil {
		return nil, err
	}
	return l.match(n, len(found), func(m *Match) {
		m.Label = Name(l.doc, n)
	}), nil
}

func (l *Locator) labelTarget(label *html.Node) *html.Node {
	if id, ok := dom.Attr(label, "for"); ok {
		return l.doc.ElementByID(id)
	}
	for n := range dom.Elements(label) {
		if !labelable[n.DataAtom] {
			continue
		}
		if n.DataAtom == atom.Input {
			if t, _ := dom.Attr(n, "type"); strings.EqualFold(t, "hidden") {
				continue
			}
		}
		return n
	}
	return nil
}

// FindByPlaceholder matches visible nodes whose placeholder contains the
// query, ignoring case.
func (l *Locator) FindByPlaceholder(placeholder string, index int) (*Match, error) {
	want := strings.ToLower(dom.NormalizeSpace(placeholder))
	if want == "" {
		return nil, Errorf(CodeInvalidArgument, "placeholder is required")
	}
	var found []*html.Node
	for n := range dom.Elements(l.doc.Root) {
		v, ok := dom.Attr(n, "placeholder")
		if !ok || !strings.Contains(strings.ToLower(dom.NormalizeSpace(v)), want) {
			continue
		}
		if Visible(l.doc, n) {
			found = append(found, n)
		}
	}

	n, err := pick(found, index, "placeholder "+quote(placeholder))
	if err != nil {
		return nil, err
	}
	return l.match(n, len(found), func(m *Match) {
		m.Placeholder, _ = dom.Attr(n, "placeholder")
	}), nil
}

func (l *Locator) match(n *html.Node, count int, fill func(*Match)) *Match {
	m := &Match{
		Ref:     l.reg.Allocate(n),
		TagName: dom.Tag(n),
		Count:   count,
		Node:    n,
	}
	fill(m)
	return m
}

func pick(found []*html.Node, index int, desc string) (*html.Node, error) {
	if len(found) == 0 {
		return nil, Errorf(CodeNotFound, "no element found with %s", desc)
	}
	if index < 0 || index >= len(found) {
		return nil, Errorf(CodeIndexOutOfRange, "index %d out of range (found %d elements with %s)", index, len(found), desc)
	}
	return found[index], nil
}

func quote(s string) string {
	return `"` + s + `"`
}
