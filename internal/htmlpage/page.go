// Package htmlpage is a Page over static markup: no browser, no scripts.
// Actions update control state in the document's side table the way a
// browser would (typing sets the value, clicking a checkbox toggles it,
// following a link loads the target through a Loader).
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
)

// Loader fetches the markup behind a URL and returns the final URL after
// redirects.
type Loader func(ctx context.Context, rawURL string) (body []byte, finalURL string, err error)

// Page is a static document.
type Page struct {
	doc       *dom.Document
	loader    Loader
	navigated bool
	logger    *slog.Logger
}

// Option configures a Page.
type Option func(*Page)

// WithLoader enables navigation.
func WithLoader(l Loader) Option {
	return func(p *Page) { p.loader = l }
}

// WithLogger sets the page's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Page) { p.logger = l }
}

// New wraps an existing document.
func New(doc *dom.Document, opts ...Option) *Page {
	p := &Page{doc: doc, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FromHTML parses markup into a Page.
func FromHTML(src []byte, pageURL string, opts ...Option) (*Page, error) {
	doc, err := dom.Parse(bytes.NewReader(src), pageURL)
	if err != nil {
		return nil, fmt.Errorf("htmlpage: %w", err)
	}
	return New(doc, opts...), nil
}

// Open loads pageURL through loader.
func Open(ctx context.Context, pageURL string, loader Loader, opts ...Option) (*Page, error) {
	p := New(nil, append([]Option{WithLoader(loader)}, opts...)...)
	if err := p.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) Document() *dom.Document { return p.doc }

// Sync reports a navigation once per Navigate; static documents change
// only through this package.
func (p *Page) Sync(ctx context.Context) (bool, error) {
	nav := p.navigated
	p.navigated = false
	return nav, ctx.Err()
}

// Navigate replaces the document with the one at rawURL. Relative URLs
// resolve against the current document.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if p.loader == nil {
		return fmt.Errorf("htmlpage: navigate %s: no loader configured", rawURL)
	}
	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	body, final, err := p.loader(ctx, target)
	if err != nil {
		return fmt.Errorf("htmlpage: navigate %s: %w", target, err)
	}
	if final == "" {
		final = target
	}
	doc, err := dom.Parse(bytes.NewReader(body), final)
	if err != nil {
		return fmt.Errorf("htmlpage: navigate %s: %w", final, err)
	}
	p.doc = doc
	p.navigated = true
	p.logger.Debug("htmlpage: navigated", "url", final, "bytes", len(body))
	return nil
}

func (p *Page) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("htmlpage: bad url %q: %w", rawURL, err)
	}
	if p.doc == nil || p.doc.URL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(p.doc.URL)
	if err != nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// Click toggles checkables, forwards label clicks to their control and
// follows links when a loader is set. Other elements accept the click
// without effect.
func (p *Page) Click(ctx context.Context, n *html.Node) error {
	if n.DataAtom == atom.Label {
		if target := labelControl(p.doc, n); target != nil {
			n = target
		}
	}

	if axtree.IsNativeCheckable(n) {
		if isRadio(n) {
			return p.SetChecked(ctx, n, true)
		}
		return p.SetChecked(ctx, n, !p.doc.Info(n).Checked)
	}

	for a := n; a != nil; a = a.Parent {
		if a.DataAtom != atom.A {
			continue
		}
		href, ok := dom.Attr(a, "href")
		if !ok || p.loader == nil || !followable(href) {
			break
		}
		return p.Navigate(ctx, href)
	}

	p.logger.Debug("htmlpage: click", "tag", dom.Tag(n))
	return nil
}

func followable(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	return h != "" && !strings.HasPrefix(h, "#") && !strings.HasPrefix(h, "javascript:")
}

// Fill replaces the value of a text entry. contenteditable elements get
// their children replaced by the text.
func (p *Page) Fill(ctx context.Context, n *html.Node, value string) error {
	if !axtree.Classify(n).Has(axtree.TextEntry) {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> does not accept text", dom.Tag(n))
	}
	if n.DataAtom == atom.Input || n.DataAtom == atom.Textarea {
		inf := p.doc.Info(n)
		inf.Value, inf.HasValue = value, true
		return nil
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	return nil
}

// SetChecked sets the state of a checkbox, radio or ARIA checkable.
// Checking a radio unchecks the others of its group.
func (p *Page) SetChecked(ctx context.Context, n *html.Node, checked bool) error {
	if !axtree.Classify(n).Has(axtree.Checkable) {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> is not checkable", dom.Tag(n))
	}
	if !axtree.IsNativeCheckable(n) {
		dom.SetAttr(n, "aria-checked", fmt.Sprint(checked))
		return nil
	}
	if checked && isRadio(n) {
		for _, other := range radioGroup(p.doc, n) {
			p.doc.Info(other).Checked = false
		}
	}
	p.doc.Info(n).Checked = checked
	return nil
}

// Select chooses the option whose value, or failing that whose text,
// equals value.
func (p *Page) Select(ctx context.Context, n *html.Node, value string) error {
	if n.DataAtom != atom.Select {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> is not a select", dom.Tag(n))
	}
	var byText, chosen *html.Node
	for opt := range dom.Elements(n) {
		if opt.DataAtom != atom.Option {
			continue
		}
		if v, ok := dom.Attr(opt, "value"); ok && v == value {
			chosen = opt
			break
		}
		if byText == nil && dom.NormalizeSpace(dom.TextContent(opt)) == dom.NormalizeSpace(value) {
			byText = opt
		}
	}
	if chosen == nil {
		chosen = byText
	}
	if chosen == nil {
		return axtree.Errorf(axtree.CodeNotFound, "no option %q in select", value)
	}

	for opt := range dom.Elements(n) {
		if opt.DataAtom == atom.Option {
			dom.RemoveAttr(opt, "selected")
		}
	}
	dom.SetAttr(chosen, "selected", "")
	inf := p.doc.Info(n)
	inf.Value, inf.HasValue = dom.OptionValue(chosen), true
	return nil
}

func (p *Page) Close() error { return nil }

func isRadio(n *html.Node) bool {
	t, _ := dom.Attr(n, "type")
	return strings.EqualFold(strings.TrimSpace(t), "radio")
}

// radioGroup returns the other radios sharing n's name within its form, or
// within the document when n has no form.
func radioGroup(doc *dom.Document, n *html.Node) []*html.Node {
	name, ok := dom.Attr(n, "name")
	if !ok || name == "" {
		return nil
	}
	scope := doc.Root
	for a := n.Parent; a != nil; a = a.Parent {
		if a.DataAtom == atom.Form {
			scope = a
			break
		}
	}
	var out []*html.Node
	for el := range dom.Elements(scope) {
		if el == n || !isRadio(el) || el.DataAtom != atom.Input {
			continue
		}
		if v, _ := dom.Attr(el, "name"); v == name {
			out = append(out, el)
		}
	}
	return out
}

// labelControl finds the control a label activates.
func labelControl(doc *dom.Document, label *html.Node) *html.Node {
	if id, ok := dom.Attr(label, "for"); ok {
		return doc.ElementByID(id)
	}
	for el := range dom.Elements(label) {
		switch el.DataAtom {
		case atom.Input, atom.Select, atom.Textarea, atom.Button:
			return el
		}
	}
	return nil
}
