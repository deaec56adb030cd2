package dom

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	"github.com/gorilla/css/scanner"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Nominal box for static elements. Static documents have no layout engine,
// so anything rendered gets the same positive box.
const (
	nominalWidth  = 100
	nominalHeight = 20
)

// nonRendered tags never produce a box.
var nonRendered = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
	atom.Base:     true,
}

// ParseStyle parses an inline style attribute into lower-cased properties.
// Comments are dropped, !important is ignored and the last declaration of a
// property wins. A malformed declaration ends parsing; the ones before it
// are kept.
func ParseStyle(s string) map[string]string {
	out := make(map[string]string)
	decls, _ := parser.ParseDeclarations(stripComments(s))
	for _, d := range decls {
		k := strings.ToLower(strings.TrimSpace(d.Property))
		if k != "" {
			out[k] = strings.ToLower(strings.TrimSpace(d.Value))
		}
	}
	return out
}

func stripComments(s string) string {
	if !strings.Contains(s, "/*") {
		return s
	}
	var b strings.Builder
	sc := scanner.New(s)
	for {
		tok := sc.Next()
		switch tok.Type {
		case scanner.TokenEOF, scanner.TokenError:
			return b.String()
		case scanner.TokenComment:
			b.WriteByte(' ')
		default:
			b.WriteString(tok.Value)
		}
	}
}

func staticInfo(n *html.Node, parent *Info) *Info {
	inf := &Info{Display: "block", Visibility: "visible", Opacity: 1}
	if parent != nil {
		inf.Visibility = parent.Visibility
	}
	if n.Type != html.ElementNode {
		if n.Type == html.DocumentNode {
			inf.Width, inf.Height = nominalWidth, nominalHeight
		} else if parent != nil {
			inf.Width, inf.Height = parent.Width, parent.Height
		}
		return inf
	}

	style := ParseStyle(attrOr(n, "style", ""))

	switch {
	case nonRendered[n.DataAtom], HasAttr(n, "hidden"):
		inf.Display = "none"
	case n.DataAtom == atom.Input && strings.EqualFold(attrOr(n, "type", ""), "hidden"):
		inf.Display = "none"
	}
	if v, ok := style["display"]; ok {
		inf.Display = v
	}
	if v, ok := style["visibility"]; ok {
		inf.Visibility = v
	}
	if v, ok := style["opacity"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			inf.Opacity = f
		}
	}

	inf.Width, inf.Height = nominalWidth, nominalHeight
	if inf.Display == "none" || (parent != nil && (parent.Width <= 0 || parent.Height <= 0)) {
		inf.Width, inf.Height = 0, 0
	}
	if v, ok := style["width"]; ok {
		if px, ok := parsePx(v); ok {
			inf.Width = px
		}
	}
	if v, ok := style["height"]; ok {
		if px, ok := parsePx(v); ok {
			inf.Height = px
		}
	}
	if inf.Display == "none" {
		inf.Width, inf.Height = 0, 0
	}

	inf.Checked = HasAttr(n, "checked")
	inf.Clickable = HasAttr(n, "onclick")
	inf.Value, inf.HasValue = staticValue(n)
	return inf
}

func staticValue(n *html.Node) (string, bool) {
	switch n.DataAtom {
	case atom.Input:
		v, ok := Attr(n, "value")
		t := strings.ToLower(attrOr(n, "type", ""))
		if t == "checkbox" || t == "radio" {
			return v, ok
		}
		return v, true
	case atom.Textarea:
		return TextContent(n), true
	case atom.Select:
		var first *html.Node
		for opt := range Elements(n) {
			if opt.DataAtom != atom.Option {
				continue
			}
			if first == nil {
				first = opt
			}
			if HasAttr(opt, "selected") {
				return OptionValue(opt), true
			}
		}
		if first != nil {
			return OptionValue(first), true
		}
		return "", true
	}
	return "", false
}

// OptionValue is the value an <option> submits: its value attribute, else its
// normalised text.
func OptionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return NormalizeSpace(TextContent(opt))
}

// parsePx understands bare numbers and px lengths. Other units are ignored
// and keep the nominal box.
func parsePx(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
