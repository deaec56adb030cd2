package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
)

// Page is one Chrome tab mirrored into a dom.Document. Sync re-captures the
// tab; actions resolve nodes through their backend id.
type Page struct {
	mgr         *Manager
	level       StealthLevel
	blocking    []string
	loadTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	tab    *rod.Page
	router *rod.HijackRouter
	url    string
	doc    *dom.Document
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithLevel picks stealth (LevelHeadless and up) or a plain tab.
func WithLevel(l StealthLevel) PageOption {
	return func(p *Page) { p.level = l }
}

// WithResourceBlocking blocks the given resource classes (images, fonts,
// media, stylesheets).
func WithResourceBlocking(types []string) PageOption {
	return func(p *Page) { p.blocking = types }
}

// WithLoadTimeout bounds each navigation.
func WithLoadTimeout(d time.Duration) PageOption {
	return func(p *Page) { p.loadTimeout = d }
}

// WithPageLogger sets the page's logger.
func WithPageLogger(l *slog.Logger) PageOption {
	return func(p *Page) { p.logger = l }
}

// OpenPage opens a tab on mgr and loads pageURL.
func OpenPage(ctx context.Context, mgr *Manager, pageURL string, opts ...PageOption) (*Page, error) {
	doc, err := dom.ParseString("", "")
	if err != nil {
		return nil, err
	}
	p := &Page{
		mgr:         mgr,
		level:       LevelHeadless,
		loadTimeout: 30 * time.Second,
		logger:      mgr.cfg.Logger,
		doc:         doc,
	}
	for _, o := range opts {
		o(p)
	}
	p.url = pageURL
	if err := p.reopen(ctx); err != nil {
		return nil, err
	}
	mgr.track(p)
	return p, nil
}

// reopen replaces the tab with a fresh one at the last URL.
func (p *Page) reopen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: not started")
	}
	p.closeTab()

	var (
		tab *rod.Page
		err error
	)
	if p.level >= LevelHeadless {
		tab, err = stealth.Page(b)
	} else {
		tab, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return fmt.Errorf("browser: create page: %w", err)
	}
	p.tab = tab
	if len(p.blocking) > 0 {
		p.router = blockResources(tab, p.blocking)
	}
	return p.load(ctx, p.url)
}

func (p *Page) load(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()
	tab := p.tab.Context(ctx)
	if err := tab.Navigate(target); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", target, err)
	}
	if err := tab.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return axtree.Errorf(axtree.CodeTimeout, "navigation to %s timed out after %s", target, p.loadTimeout)
		}
		return fmt.Errorf("browser: wait load %s: %w", target, err)
	}
	p.url = target
	p.logger.Debug("browser: page loaded", "url", target, "level", int(p.level))
	return nil
}

func (p *Page) Document() *dom.Document { return p.doc }

// Sync re-captures the tab and reconciles it into the document.
func (p *Page) Sync(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tab == nil {
		return false, fmt.Errorf("browser: page is closed")
	}
	pageURL, nodes, err := capture(p.tab.Context(ctx))
	if err != nil {
		return false, err
	}
	if pageURL != "" {
		p.url = pageURL
	}
	return p.doc.Reconcile(p.url, nodes), nil
}

// Navigate loads rawURL, resolved against the current URL.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	target, err := resolveURL(p.url, rawURL)
	if err != nil {
		return err
	}
	return p.load(ctx, target)
}

func resolveURL(base, ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", axtree.Errorf(axtree.CodeInvalidArgument, "invalid url %q: %v", ref, err)
	}
	if b, err := url.Parse(base); err == nil && base != "" {
		u = b.ResolveReference(u)
	}
	return u.String(), nil
}

// element resolves n to a live handle.
func (p *Page) element(ctx context.Context, n *html.Node) (*rod.Element, error) {
	id := p.doc.Info(n).BackendID
	if id == 0 {
		return nil, axtree.Errorf(axtree.CodeNotFound, "<%s> has no live node", dom.Tag(n))
	}
	tab := p.tab.Context(ctx)
	obj, err := proto.DOMResolveNode{BackendNodeID: proto.DOMBackendNodeID(id)}.Call(tab)
	if err != nil {
		return nil, axtree.Errorf(axtree.CodeNotFound, "node %d is gone: %v", id, err)
	}
	el, err := tab.ElementFromObject(obj.Object)
	if err != nil {
		return nil, fmt.Errorf("browser: element %d: %w", id, err)
	}
	return el, nil
}

// Click performs a left click at the element's centre.
func (p *Page) Click(ctx context.Context, n *html.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(ctx, n)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

// Fill selects the current content and types value over it.
func (p *Page) Fill(ctx context.Context, n *html.Node, value string) error {
	if !axtree.Classify(n).Has(axtree.TextEntry) {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> does not accept text", dom.Tag(n))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(ctx, n)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: fill: select text: %w", err)
	}
	if value == "" {
		err = el.Type(input.Backspace)
	} else {
		err = el.Input(value)
	}
	if err != nil {
		return fmt.Errorf("browser: fill: %w", err)
	}
	return nil
}

const setCheckedJS = `(c) => {
	this.checked = c;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

// SetChecked clicks the element when its state differs from checked. A
// native control the click did not flip (an already checked radio) is set
// directly.
func (p *Page) SetChecked(ctx context.Context, n *html.Node, checked bool) error {
	if !axtree.Classify(n).Has(axtree.Checkable) {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> is not checkable", dom.Tag(n))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(ctx, n)
	if err != nil {
		return err
	}

	native := axtree.IsNativeCheckable(n)
	current := func() (bool, error) {
		if native {
			v, err := el.Property("checked")
			if err != nil {
				return false, err
			}
			return v.Bool(), nil
		}
		v, err := el.Attribute("aria-checked")
		if err != nil {
			return false, err
		}
		return v != nil && *v == "true", nil
	}

	now, err := current()
	if err != nil {
		return fmt.Errorf("browser: read checked: %w", err)
	}
	if now == checked {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: toggle: %w", err)
	}
	if !native {
		return nil
	}
	if now, err = current(); err == nil && now != checked {
		if _, err := el.Eval(setCheckedJS, checked); err != nil {
			return fmt.Errorf("browser: set checked: %w", err)
		}
	}
	return nil
}

// Select picks the option whose value, or failing that whose text, equals
// value.
func (p *Page) Select(ctx context.Context, n *html.Node, value string) error {
	if n.DataAtom != atom.Select {
		return axtree.Errorf(axtree.CodeInvalidElement, "<%s> is not a select", dom.Tag(n))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	selector, kind := "", rod.SelectorTypeCSSSector
	for opt := range dom.Elements(n) {
		if opt.DataAtom != atom.Option {
			continue
		}
		if v, ok := dom.Attr(opt, "value"); ok && v == value {
			selector, kind = `option[value="`+cssEscape(value)+`"]`, rod.SelectorTypeCSSSector
			break
		}
		if selector == "" && dom.NormalizeSpace(dom.TextContent(opt)) == dom.NormalizeSpace(value) {
			selector, kind = dom.NormalizeSpace(value), rod.SelectorTypeText
		}
	}
	if selector == "" {
		return axtree.Errorf(axtree.CodeNotFound, "no option %q in select", value)
	}

	el, err := p.element(ctx, n)
	if err != nil {
		return err
	}
	if err := el.Select([]string{selector}, true, kind); err != nil {
		return fmt.Errorf("browser: select: %w", err)
	}
	return nil
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Close closes the tab and stops tracking it.
func (p *Page) Close() error {
	p.mgr.untrack(p)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeTab()
	return nil
}

func (p *Page) closeTab() {
	if p.router != nil {
		p.router.Stop()
		p.router = nil
	}
	if p.tab != nil {
		p.tab.Close()
		p.tab = nil
	}
}
