package domref

import (
	"context"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// Page is the live document a Session drives. internal/htmlpage serves
// static markup; internal/browser drives Chrome.
//
// A Page is used by one Session at a time; the Session serialises calls.
type Page interface {
	// Document returns the current tree. The pointer may change after a
	// navigation.
	Document() *dom.Document

	// Sync brings Document up to date with the page and reports whether
	// the page navigated since the previous Sync.
	Sync(ctx context.Context) (navigated bool, err error)

	// Navigate loads a new URL into the page.
	Navigate(ctx context.Context, url string) error

	Click(ctx context.Context, n *html.Node) error
	Fill(ctx context.Context, n *html.Node, value string) error
	SetChecked(ctx context.Context, n *html.Node, checked bool) error
	Select(ctx context.Context, n *html.Node, value string) error

	Close() error
}
