package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// IsXPath reports whether a structural selector is an XPath expression
// rather than a CSS selector.
func IsXPath(sel string) bool {
	return strings.HasPrefix(sel, "xpath=") ||
		strings.HasPrefix(sel, "/") ||
		strings.HasPrefix(sel, "./") ||
		strings.HasPrefix(sel, "(")
}

// QueryAll evaluates a CSS or XPath selector against the attached tree and
// returns matching elements in document order.
func (d *Document) QueryAll(sel string) ([]*html.Node, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, fmt.Errorf("dom: empty selector")
	}
	if d.Root == nil {
		return nil, nil
	}

	if IsXPath(sel) {
		expr := strings.TrimPrefix(sel, "xpath=")
		found, err := htmlquery.QueryAll(d.Root, expr)
		if err != nil {
			return nil, fmt.Errorf("dom: xpath %q: %w", expr, err)
		}
		out := found[:0]
		for _, n := range found {
			if n.Type == html.ElementNode {
				out = append(out, n)
			}
		}
		return out, nil
	}

	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil, fmt.Errorf("dom: css %q: %w", sel, err)
	}
	return cascadia.QueryAll(d.Root, group), nil
}

// Query returns the first match of sel, or nil when nothing matches.
func (d *Document) Query(sel string) (*html.Node, error) {
	all, err := d.QueryAll(sel)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}
