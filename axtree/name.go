package axtree

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/dom"
)

const (
	maxTextName  = 100
	maxValueName = 50
)

// Name computes the accessible name of n. The first non-empty source wins:
//
//  1. aria-label
//  2. texts of the aria-labelledby targets, space-joined
//  3. a <label for=id> pointing at n
//  4. a wrapping <label>, minus n's own text
//  5. title
//  6. placeholder
//  7. alt
//  8. n's text content, when it is at most 100 characters
//  9. the current value of a value-bearing control, cut to 50 characters
func Name(doc *dom.Document, n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if s := attrText(n, "aria-label"); s != "" {
		return s
	}
	if s := labelledBy(doc, n); s != "" {
		return s
	}
	if s := labelFor(doc, n); s != "" {
		return s
	}
	if s := wrappingLabel(n); s != "" {
		return s
	}
	for _, attr := range [...]string{"title", "placeholder", "alt"} {
		if s := attrText(n, attr); s != "" {
			return s
		}
	}

	text := dom.NormalizeSpace(dom.TextContent(n))
	if text != "" && utf8.RuneCountInString(text) <= maxTextName {
		return text
	}

	if Classify(n).Has(ValueBearing) {
		if v := dom.NormalizeSpace(doc.Info(n).Value); v != "" {
			return truncate(v, maxValueName)
		}
	}
	return ""
}

func attrText(n *html.Node, name string) string {
	v, _ := dom.Attr(n, name)
	return dom.NormalizeSpace(v)
}

func labelledBy(doc *dom.Document, n *html.Node) string {
	ids := strings.Fields(attrText(n, "aria-labelledby"))
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if ref := doc.ElementByID(id); ref != nil {
			parts = append(parts, dom.TextContent(ref))
		}
	}
	return dom.NormalizeSpace(strings.Join(parts, " "))
}

func labelFor(doc *dom.Document, n *html.Node) string {
	id := attrText(n, "id")
	if id == "" {
		return ""
	}
	for el := range dom.Elements(doc.Root) {
		if el.DataAtom != atom.Label {
			continue
		}
		if v, ok := dom.Attr(el, "for"); ok && v == id {
			return dom.NormalizeSpace(dom.TextContent(el))
		}
	}
	return ""
}

func wrappingLabel(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom != atom.Label || p.Type != html.ElementNode {
			continue
		}
		text := dom.TextContent(p)
		if own := dom.TextContent(n); own != "" {
			text = strings.Replace(text, own, "", 1)
		}
		return dom.NormalizeSpace(text)
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
