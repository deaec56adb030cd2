package axtree

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/dom"
)

// Capability classifies what a node can do as a control. It is computed
// once from tag, type and role; callers dispatch on it instead of probing
// node shape.
type Capability uint8

const (
	// TextEntry nodes accept typed text.
	TextEntry Capability = 1 << iota
	// Checkable nodes carry a checked state.
	Checkable
	// Selectable nodes choose among options.
	Selectable
	// ValueBearing nodes expose a current value.
	ValueBearing

	// None is the zero classification.
	None Capability = 0
)

// Has reports whether every bit of c2 is set in c.
func (c Capability) Has(c2 Capability) bool {
	return c2 != 0 && c&c2 == c2
}

func (c Capability) String() string {
	if c == None {
		return "none"
	}
	var parts []string
	if c.Has(TextEntry) {
		parts = append(parts, "text-entry")
	}
	if c.Has(Checkable) {
		parts = append(parts, "checkable")
	}
	if c.Has(Selectable) {
		parts = append(parts, "selectable")
	}
	if c.Has(ValueBearing) {
		parts = append(parts, "value")
	}
	return strings.Join(parts, "|")
}

// nonTextInputs never take typed text.
var nonTextInputs = map[string]bool{
	"button":   true,
	"submit":   true,
	"reset":    true,
	"image":    true,
	"hidden":   true,
	"file":     true,
	"range":    true,
	"color":    true,
	"checkbox": true,
	"radio":    true,
}

// Classify computes the capability of n.
func Classify(n *html.Node) Capability {
	if n == nil || n.Type != html.ElementNode {
		return None
	}
	switch n.DataAtom {
	case atom.Input:
		t, _ := dom.Attr(n, "type")
		t = strings.ToLower(strings.TrimSpace(t))
		switch {
		case t == "checkbox" || t == "radio":
			return Checkable
		case nonTextInputs[t]:
			return ValueBearing
		default:
			return TextEntry | ValueBearing
		}
	case atom.Textarea:
		return TextEntry | ValueBearing
	case atom.Select:
		return Selectable | ValueBearing
	}

	var c Capability
	if IsEditable(n) {
		c |= TextEntry
	}
	if r, ok := ExplicitRole(n); ok {
		switch r {
		case "checkbox", "radio", "switch", "menuitemcheckbox", "menuitemradio":
			c |= Checkable
		}
	}
	return c
}

// IsEditable reports a contenteditable element.
func IsEditable(n *html.Node) bool {
	v, ok := dom.Attr(n, "contenteditable")
	if !ok {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}

// IsNativeCheckable reports a checkbox or radio input, whose state lives in
// the document's side table rather than in aria-checked.
func IsNativeCheckable(n *html.Node) bool {
	if n == nil || n.DataAtom != atom.Input {
		return false
	}
	t, _ := dom.Attr(n, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	return t == "checkbox" || t == "radio"
}
