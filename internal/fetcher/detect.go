package fetcher

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// spaShells are empty mount points left by client-rendered apps.
var spaShells = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte(`<noscript>you need to enable javascript`),
	[]byte(`<noscript>enable javascript`),
}

// IsSufficient reports whether a static body has enough visible text to be
// driven without a browser. Pages under 256 bytes, with under 200 visible
// characters, with under 10% text, or showing an SPA mount point are not.
func IsSufficient(body []byte) bool {
	if len(body) < 256 {
		return false
	}

	text := visibleTextLen(body)
	if text < 200 {
		return false
	}
	if float64(text)/float64(len(body)) < 0.10 {
		return false
	}

	lower := bytes.ToLower(body)
	for _, shell := range spaShells {
		if bytes.Contains(lower, shell) {
			return false
		}
	}
	return true
}

// visibleTextLen counts non-space bytes of text outside script and style.
func visibleTextLen(body []byte) int {
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	n := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			for t := z.Text(); len(t) > 0; {
				r, size := utf8.DecodeRune(t)
				if !unicode.IsSpace(r) {
					n += size
				}
				t = t[size:]
			}
		}
	}
}
