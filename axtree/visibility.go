package axtree

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// Visible reports whether n takes part in the projection: display is not
// none, visibility is not hidden, opacity is not zero and the box has a
// positive area.
//
// Ancestor clipping, overflow and off-viewport positioning are not
// considered. A node scrolled out of view or clipped by an overflow:hidden
// parent is still reported visible.
func Visible(doc *dom.Document, n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	inf := doc.Info(n)
	if inf.Display == "none" || inf.Visibility == "hidden" || inf.Opacity == 0 {
		return false
	}
	return inf.Width > 0 && inf.Height > 0
}
