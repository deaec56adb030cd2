package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Captured is one node of a flat tree capture, in document order. Parent
// indexes an earlier entry of the same capture, or is -1 for the root.
type Captured struct {
	BackendID int
	Parent    int
	Type      html.NodeType
	Data      string
	Attr      []html.Attribute
	Info      Info
}

// Reconcile applies a fresh capture to the document in place. Nodes are
// matched by BackendID, so a node that survives keeps its *html.Node
// identity and every ref pointing at it stays valid. Nodes missing from the
// capture end up detached. It reports whether the document root or the URL
// outside its fragment changed, which callers treat as a navigation.
func (d *Document) Reconcile(url string, nodes []Captured) (navigated bool) {
	oldRoot := d.Root

	for _, n := range d.backend {
		n.Parent, n.FirstChild, n.LastChild, n.PrevSibling, n.NextSibling = nil, nil, nil, nil, nil
	}

	built := make([]*html.Node, len(nodes))
	next := make(map[int]*html.Node, len(nodes))
	info := make(map[*html.Node]*Info, len(nodes))
	var root *html.Node

	for i, c := range nodes {
		if c.Parent >= 0 && (c.Parent >= i || built[c.Parent] == nil) {
			continue
		}
		data := c.Data
		if c.Type == html.ElementNode {
			data = strings.ToLower(data)
		}

		n, ok := d.backend[c.BackendID]
		if !ok || n.Type != c.Type || (c.Type == html.ElementNode && n.Data != data) {
			n = &html.Node{Type: c.Type}
		}
		n.Data = data
		n.DataAtom = 0
		if c.Type == html.ElementNode {
			n.DataAtom = atom.Lookup([]byte(data))
		}
		n.Attr = c.Attr

		inf := c.Info
		inf.BackendID = c.BackendID
		info[n] = &inf
		built[i] = n
		if c.BackendID != 0 {
			next[c.BackendID] = n
		}

		if c.Parent < 0 {
			if root == nil {
				root = n
			}
			continue
		}
		built[c.Parent].AppendChild(n)
	}

	d.Root = root
	d.backend = next
	d.info = info
	navigated = oldRoot != root || withoutFragment(d.URL) != withoutFragment(url)
	d.URL = url
	return navigated
}

func withoutFragment(u string) string {
	u, _, _ = strings.Cut(u, "#")
	return u
}
