package domref

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
	"github.com/hazyhaar/domref/internal/journal"
)

// Target names the element an action applies to.
type Target struct {
	Selector string `json:"selector"`
}

// Input is the payload of fill and select.
type Input struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// Wait is the waitFor payload. A zero TimeoutMs uses the session default.
type Wait struct {
	Selector  string `json:"selector"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// Element describes the node an action resolved to.
type Element struct {
	Ref     string `json:"ref,omitempty"`
	TagName string `json:"tagName"`
}

// act resolves sel and hands the node to fn.
func (s *Session) act(ctx context.Context, op string, params any, sel string, fn func(doc *dom.Document, n *html.Node) error) error {
	_, err := run(ctx, s, op, params, func(doc *dom.Document, ev *journal.Event) (struct{}, error) {
		n, err := s.resolve(doc, sel)
		if err != nil {
			return struct{}{}, err
		}
		if axtree.IsRef(strings.TrimSpace(sel)) {
			ev.Ref = strings.TrimSpace(sel)
		}
		return struct{}{}, fn(doc, n)
	})
	return err
}

// Click clicks the element.
func (s *Session) Click(ctx context.Context, sel string) error {
	return s.act(ctx, "click", Target{sel}, sel, func(_ *dom.Document, n *html.Node) error {
		return s.pg.Click(ctx, n)
	})
}

// Fill replaces the value of a text entry.
func (s *Session) Fill(ctx context.Context, sel, value string) error {
	return s.act(ctx, "fill", Input{sel, value}, sel, func(_ *dom.Document, n *html.Node) error {
		if !axtree.Classify(n).Has(axtree.TextEntry) {
			return axtree.Errorf(axtree.CodeInvalidElement, "fill needs a text entry, got <%s>", dom.Tag(n))
		}
		return s.pg.Fill(ctx, n, value)
	})
}

// Check checks a checkbox, radio or ARIA checkable.
func (s *Session) Check(ctx context.Context, sel string) error {
	return s.setChecked(ctx, "check", sel, true)
}

// Uncheck unchecks a checkbox, radio or ARIA checkable.
func (s *Session) Uncheck(ctx context.Context, sel string) error {
	return s.setChecked(ctx, "uncheck", sel, false)
}

func (s *Session) setChecked(ctx context.Context, op, sel string, checked bool) error {
	return s.act(ctx, op, Target{sel}, sel, func(_ *dom.Document, n *html.Node) error {
		if !axtree.Classify(n).Has(axtree.Checkable) {
			return axtree.Errorf(axtree.CodeInvalidElement, "%s needs a checkbox or radio, got <%s>", op, dom.Tag(n))
		}
		return s.pg.SetChecked(ctx, n, checked)
	})
}

// Select chooses an option of a <select> by value or text.
func (s *Session) Select(ctx context.Context, sel, value string) error {
	return s.act(ctx, "select", Input{sel, value}, sel, func(_ *dom.Document, n *html.Node) error {
		if !axtree.Classify(n).Has(axtree.Selectable) {
			return axtree.Errorf(axtree.CodeInvalidElement, "select needs a <select>, got <%s>", dom.Tag(n))
		}
		return s.pg.Select(ctx, n, value)
	})
}

// Navigate loads url into the page. The next command sees a new ref epoch.
func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := run(ctx, s, "navigate", map[string]string{"url": url}, func(doc *dom.Document, _ *journal.Event) (struct{}, error) {
		if strings.TrimSpace(url) == "" {
			return struct{}{}, axtree.Errorf(axtree.CodeInvalidArgument, "url is required")
		}
		if err := s.pg.Navigate(ctx, url); err != nil {
			return struct{}{}, err
		}
		_, err := s.sync(ctx)
		return struct{}{}, err
	})
	return err
}

// read resolves sel and extracts a value from the node.
func read[T any](ctx context.Context, s *Session, op, sel string, fn func(doc *dom.Document, n *html.Node) (T, error)) (T, error) {
	return run(ctx, s, op, Target{sel}, func(doc *dom.Document, ev *journal.Event) (T, error) {
		var zero T
		n, err := s.resolve(doc, sel)
		if err != nil {
			return zero, err
		}
		if axtree.IsRef(strings.TrimSpace(sel)) {
			ev.Ref = strings.TrimSpace(sel)
		}
		return fn(doc, n)
	})
}

// GetText returns the element's whitespace-normalised text content.
func (s *Session) GetText(ctx context.Context, sel string) (string, error) {
	return read(ctx, s, "getText", sel, func(_ *dom.Document, n *html.Node) (string, error) {
		return dom.NormalizeSpace(dom.TextContent(n)), nil
	})
}

// GetValue returns the current value of a text entry or select.
func (s *Session) GetValue(ctx context.Context, sel string) (string, error) {
	return read(ctx, s, "getValue", sel, func(doc *dom.Document, n *html.Node) (string, error) {
		c := axtree.Classify(n)
		switch {
		case c.Has(axtree.ValueBearing) && (c.Has(axtree.TextEntry) || c.Has(axtree.Selectable)):
			return doc.Info(n).Value, nil
		case c.Has(axtree.TextEntry):
			return dom.TextContent(n), nil
		}
		return "", axtree.Errorf(axtree.CodeInvalidElement, "getValue needs a text entry or select, got <%s>", dom.Tag(n))
	})
}

// GetHTML returns the element's outer HTML with scripts, handlers and
// other unsafe markup removed.
func (s *Session) GetHTML(ctx context.Context, sel string) (string, error) {
	return read(ctx, s, "getHTML", sel, func(_ *dom.Document, n *html.Node) (string, error) {
		raw, err := dom.OuterHTML(n)
		if err != nil {
			return "", fmt.Errorf("domref: getHTML: %w", err)
		}
		return s.policy.Sanitize(raw), nil
	})
}

// GetMarkdown converts the element to Markdown, resolving relative links
// against the page URL.
func (s *Session) GetMarkdown(ctx context.Context, sel string) (string, error) {
	return read(ctx, s, "getMarkdown", sel, func(doc *dom.Document, n *html.Node) (string, error) {
		raw, err := dom.OuterHTML(n)
		if err != nil {
			return "", fmt.Errorf("domref: getMarkdown: %w", err)
		}
		var md string
		if doc.URL != "" {
			md, err = s.md.ConvertString(raw, converter.WithDomain(doc.URL))
		} else {
			md, err = s.md.ConvertString(raw)
		}
		if err != nil {
			return "", fmt.Errorf("domref: getMarkdown: %w", err)
		}
		return strings.TrimSpace(md), nil
	})
}

// IsVisible reports whether the element is visible. A structural selector
// that matches nothing is not visible; an unknown ref is an error.
func (s *Session) IsVisible(ctx context.Context, sel string) (bool, error) {
	return run(ctx, s, "isVisible", Target{sel}, func(doc *dom.Document, _ *journal.Event) (bool, error) {
		n, err := s.resolve(doc, sel)
		if err != nil {
			if !axtree.IsRef(strings.TrimSpace(sel)) && errors.Is(err, axtree.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return axtree.Visible(doc, n), nil
	})
}

// Count returns how many elements a structural selector matches. Refs are
// rejected: they always name exactly one node.
func (s *Session) Count(ctx context.Context, sel string) (int, error) {
	return run(ctx, s, "count", Target{sel}, func(doc *dom.Document, ev *journal.Event) (int, error) {
		sel := strings.TrimSpace(sel)
		if sel == "" {
			return 0, axtree.Errorf(axtree.CodeInvalidArgument, "selector is required")
		}
		if axtree.IsRef(sel) {
			return 0, axtree.Errorf(axtree.CodeInvalidArgument, "count needs a structural selector, got ref %s", sel)
		}
		all, err := queryAll(doc, sel)
		if err != nil {
			return 0, err
		}
		ev.Count = len(all)
		return len(all), nil
	})
}

// WaitFor polls until the selector resolves to a visible element and
// returns a ref to it: the ref itself when one was given, a new one
// otherwise. It fails with TIMEOUT once the timeout or ctx expires.
func (s *Session) WaitFor(ctx context.Context, w Wait) (*Element, error) {
	timeout := s.waitTimeout
	if w.TimeoutMs > 0 {
		timeout = time.Duration(w.TimeoutMs) * time.Millisecond
	}
	return run(ctx, s, "waitFor", w, func(doc *dom.Document, ev *journal.Event) (*Element, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ticker := time.NewTicker(s.waitInterval)
		defer ticker.Stop()

		isRef := axtree.IsRef(strings.TrimSpace(w.Selector))
		for {
			n, err := s.resolve(doc, w.Selector)
			switch {
			case err == nil && axtree.Visible(doc, n):
				ref := strings.TrimSpace(w.Selector)
				if !isRef {
					ref = s.reg.Allocate(n)
				}
				el := &Element{Ref: ref, TagName: dom.Tag(n)}
				ev.Ref = ref
				return el, nil
			case err != nil && (isRef || !errors.Is(err, axtree.ErrNotFound)):
				return nil, err
			}

			select {
			case <-ctx.Done():
				return nil, axtree.Errorf(axtree.CodeTimeout, "%q not visible after %s", w.Selector, timeout)
			case <-ticker.C:
			}
			if doc, err = s.sync(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, axtree.Errorf(axtree.CodeTimeout, "%q not visible after %s", w.Selector, timeout)
				}
				return nil, err
			}
		}
	})
}
