// Package dom holds the live document tree a session drives.
//
// The tree itself is a golang.org/x/net/html node tree. What HTML alone does
// not carry (computed style, bounding box, current control state, the
// browser's backend node id) lives in a side table keyed by node, so the same
// model serves static pages parsed from markup and live pages synced from
// Chrome.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Info is the layout and control state of one node.
type Info struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`

	Value     string `json:"value,omitempty"`
	HasValue  bool   `json:"has_value,omitempty"`
	Checked   bool   `json:"checked,omitempty"`
	Clickable bool   `json:"clickable,omitempty"`

	// BackendID is the browser's stable node id. Zero for static documents.
	BackendID int `json:"backend_id,omitempty"`
}

// Document is a node tree plus its side table. It is not safe for
// concurrent use; the owning session serialises access.
type Document struct {
	Root *html.Node
	URL  string

	info    map[*html.Node]*Info
	backend map[int]*html.Node
}

// Parse reads HTML and builds a static document. Layout is derived from the
// markup only: inline style, the hidden attribute and non-rendered tags.
func Parse(r io.Reader, url string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return NewDocument(root, url), nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s, url string) (*Document, error) {
	return Parse(strings.NewReader(s), url)
}

// NewDocument wraps an existing tree and computes static layout for it.
func NewDocument(root *html.Node, url string) *Document {
	d := &Document{
		Root:    root,
		URL:     url,
		info:    make(map[*html.Node]*Info),
		backend: make(map[int]*html.Node),
	}
	d.computeStatic(root)
	return d
}

// Info returns the side-table entry for n, computing static defaults for
// nodes that were attached after the document was built.
func (d *Document) Info(n *html.Node) *Info {
	if inf, ok := d.info[n]; ok {
		return inf
	}
	var parent *Info
	if n.Parent != nil {
		parent = d.Info(n.Parent)
	}
	inf := staticInfo(n, parent)
	d.info[n] = inf
	return inf
}

// SetInfo replaces the side-table entry for n.
func (d *Document) SetInfo(n *html.Node, inf Info) {
	d.info[n] = &inf
}

// Contains reports whether n is still attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	if n == nil || d.Root == nil {
		return false
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	return top == d.Root
}

// ByBackendID returns the attached node carrying the browser id, if any.
func (d *Document) ByBackendID(id int) (*html.Node, bool) {
	n, ok := d.backend[id]
	if !ok || !d.Contains(n) {
		return nil, false
	}
	return n, true
}

// Body returns the <body> element, or the document element when the page
// has no body (framesets, fragments).
func (d *Document) Body() *html.Node {
	var docElem *html.Node
	for n := range Elements(d.Root) {
		if n.DataAtom == atom.Body {
			return n
		}
		if docElem == nil {
			docElem = n
		}
	}
	return docElem
}

// ElementByID returns the first attached element with the given id.
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	for n := range Elements(d.Root) {
		if v, ok := Attr(n, "id"); ok && v == id {
			return n
		}
	}
	return nil
}

// computeStatic walks the tree iteratively so deep documents cannot
// exhaust the stack.
func (d *Document) computeStatic(root *html.Node) {
	if root == nil {
		return
	}
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var parent *Info
		if n.Parent != nil {
			parent = d.info[n.Parent]
		}
		d.info[n] = staticInfo(n, parent)

		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}
