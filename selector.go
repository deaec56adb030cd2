package domref

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
)

// resolve maps a selector to one node. Refs (@eN) go through the registry
// of the current epoch; anything else is a CSS or XPath query against the
// live tree and returns its first match.
func (s *Session) resolve(doc *dom.Document, sel string) (*html.Node, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, axtree.Errorf(axtree.CodeInvalidArgument, "selector is required")
	}
	if axtree.IsRef(sel) {
		n, err := s.reg.Resolve(sel)
		if err != nil {
			return nil, err
		}
		if !doc.Contains(n) {
			return nil, axtree.Errorf(axtree.CodeNotFound, "ref %s is no longer in the document", sel)
		}
		return n, nil
	}
	all, err := queryAll(doc, sel)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, axtree.Errorf(axtree.CodeNotFound, "no element matches %q", sel)
	}
	return all[0], nil
}

func queryAll(doc *dom.Document, sel string) ([]*html.Node, error) {
	all, err := doc.QueryAll(sel)
	if err != nil {
		return nil, axtree.Errorf(axtree.CodeInvalidArgument, "invalid selector %q: %v", sel, err)
	}
	return all, nil
}
