package axtree

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/dom"
)

// tagRoles maps tags whose implicit role needs no attribute inspection.
var tagRoles = map[atom.Atom]string{
	atom.Article:  "article",
	atom.Aside:    "complementary",
	atom.Button:   "button",
	atom.Dialog:   "dialog",
	atom.Fieldset: "group",
	atom.Details:  "group",
	atom.Summary:  "button",
	atom.Footer:   "contentinfo",
	atom.Header:   "banner",
	atom.Form:     "form",
	atom.Hr:       "separator",
	atom.Img:      "img",
	atom.Li:       "listitem",
	atom.Main:     "main",
	atom.Menu:     "list",
	atom.Meter:    "meter",
	atom.Nav:      "navigation",
	atom.Ol:       "list",
	atom.Ul:       "list",
	atom.Option:   "option",
	atom.Output:   "status",
	atom.Progress: "progressbar",
	atom.Table:    "table",
	atom.Thead:    "rowgroup",
	atom.Tbody:    "rowgroup",
	atom.Tfoot:    "rowgroup",
	atom.Tr:       "row",
	atom.Td:       "cell",
	atom.Th:       "columnheader",
	atom.Textarea: "textbox",
	atom.H1:       "heading",
	atom.H2:       "heading",
	atom.H3:       "heading",
	atom.H4:       "heading",
	atom.H5:       "heading",
	atom.H6:       "heading",
}

// inputRoles maps input types. Absent or unknown types are textboxes.
var inputRoles = map[string]string{
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
	"image":    "button",
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"number":   "spinbutton",
	"search":   "searchbox",
	"email":    "textbox",
	"tel":      "textbox",
	"text":     "textbox",
	"url":      "textbox",
	"password": "textbox",
}

// interactiveRoles are the roles a caller can act on directly.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"textbox":          true,
	"checkbox":         true,
	"radio":            true,
	"combobox":         true,
	"listbox":          true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"option":           true,
	"searchbox":        true,
	"slider":           true,
	"spinbutton":       true,
	"switch":           true,
	"tab":              true,
	"treeitem":         true,
}

// IsInteractiveRole reports whether role belongs to the interactive set.
func IsInteractiveRole(role string) bool {
	return interactiveRoles[role]
}

// Role returns the semantic role of n, or "" when it has none. An explicit
// role attribute always wins over the implicit one.
func Role(n *html.Node) string {
	if r, ok := ExplicitRole(n); ok {
		return r
	}
	return ImplicitRole(n)
}

// ExplicitRole returns the first token of a non-empty role attribute.
func ExplicitRole(n *html.Node) (string, bool) {
	v, ok := dom.Attr(n, "role")
	if !ok {
		return "", false
	}
	f := strings.Fields(strings.ToLower(v))
	if len(f) == 0 {
		return "", false
	}
	return f[0], true
}

// ImplicitRole derives the role from tag and attributes, ignoring any
// explicit role attribute.
func ImplicitRole(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	switch n.DataAtom {
	case atom.A, atom.Area:
		if dom.HasAttr(n, "href") {
			return "link"
		}
		return ""
	case atom.Input:
		t, _ := dom.Attr(n, "type")
		if r, ok := inputRoles[strings.ToLower(strings.TrimSpace(t))]; ok {
			return r
		}
		return "textbox"
	case atom.Select:
		if dom.HasAttr(n, "multiple") {
			return "listbox"
		}
		return "combobox"
	case atom.Section:
		if hasExplicitLabel(n) {
			return "region"
		}
		return ""
	}
	return tagRoles[n.DataAtom]
}

func hasExplicitLabel(n *html.Node) bool {
	if v, ok := dom.Attr(n, "aria-label"); ok && strings.TrimSpace(v) != "" {
		return true
	}
	v, ok := dom.Attr(n, "aria-labelledby")
	return ok && strings.TrimSpace(v) != ""
}

// HeadingLevel returns aria-level when set, else the digit of an h1..h6
// tag. Zero means no level.
func HeadingLevel(n *html.Node) int {
	if v, ok := dom.Attr(n, "aria-level"); ok {
		if lvl, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && lvl > 0 {
			return lvl
		}
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}
