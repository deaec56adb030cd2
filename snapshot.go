package domref

import (
	"context"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
	"github.com/hazyhaar/domref/internal/journal"
)

// SnapshotResult is the answer to a snapshot command.
type SnapshotResult struct {
	Tree     axtree.Projection `json:"tree"`
	Snapshot string            `json:"snapshot"`
	Refs     int               `json:"refs"`
	URL      string            `json:"url,omitempty"`
}

// Snapshot starts a new ref epoch and projects the page from <body>, or
// from the first match of opts.Scope. A scope that matches nothing is an
// ELEMENT_NOT_FOUND error; an empty projection is not.
func (s *Session) Snapshot(ctx context.Context, opts axtree.Options) (*SnapshotResult, error) {
	return run(ctx, s, "snapshot", opts, func(doc *dom.Document, ev *journal.Event) (*SnapshotResult, error) {
		root := doc.Body()
		if root == nil {
			root = doc.Root
		}
		if opts.Scope != "" {
			n, err := doc.Query(opts.Scope)
			if err != nil {
				return nil, axtree.Errorf(axtree.CodeInvalidArgument, "invalid scope %q: %v", opts.Scope, err)
			}
			if n == nil {
				return nil, axtree.Errorf(axtree.CodeNotFound, "scope %q matched no element", opts.Scope)
			}
			root = n
		}

		s.reg.Clear()
		p := axtree.Project(doc, root, opts, s.reg)
		ev.Count = s.reg.Len()
		return &SnapshotResult{
			Tree:     p,
			Snapshot: axtree.Render(p),
			Refs:     s.reg.Len(),
			URL:      doc.URL,
		}, nil
	})
}

// RoleQuery is the findByRole payload.
type RoleQuery struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Index int    `json:"index,omitempty"`
}

// TextQuery is the findByText payload.
type TextQuery struct {
	Text  string `json:"text"`
	Exact bool   `json:"exact,omitempty"`
	Index int    `json:"index,omitempty"`
}

// LabelQuery is the findByLabel payload.
type LabelQuery struct {
	Label string `json:"label"`
	Index int    `json:"index,omitempty"`
}

// PlaceholderQuery is the findByPlaceholder payload.
type PlaceholderQuery struct {
	Placeholder string `json:"placeholder"`
	Index       int    `json:"index,omitempty"`
}

// FindByRole locates the index-th visible node with the given role.
func (s *Session) FindByRole(ctx context.Context, q RoleQuery) (*axtree.Match, error) {
	return s.find(ctx, "findByRole", q, func(l *axtree.Locator) (*axtree.Match, error) {
		return l.FindByRole(q.Role, q.Name, q.Index)
	})
}

// FindByText locates the index-th most specific node containing text.
func (s *Session) FindByText(ctx context.Context, q TextQuery) (*axtree.Match, error) {
	return s.find(ctx, "findByText", q, func(l *axtree.Locator) (*axtree.Match, error) {
		return l.FindByText(q.Text, q.Exact, q.Index)
	})
}

// FindByLabel locates the index-th control labelled by label.
func (s *Session) FindByLabel(ctx context.Context, q LabelQuery) (*axtree.Match, error) {
	return s.find(ctx, "findByLabel", q, func(l *axtree.Locator) (*axtree.Match, error) {
		return l.FindByLabel(q.Label, q.Index)
	})
}

// FindByPlaceholder locates the index-th node whose placeholder contains
// the query.
func (s *Session) FindByPlaceholder(ctx context.Context, q PlaceholderQuery) (*axtree.Match, error) {
	return s.find(ctx, "findByPlaceholder", q, func(l *axtree.Locator) (*axtree.Match, error) {
		return l.FindByPlaceholder(q.Placeholder, q.Index)
	})
}

func (s *Session) find(ctx context.Context, op string, params any, fn func(*axtree.Locator) (*axtree.Match, error)) (*axtree.Match, error) {
	return run(ctx, s, op, params, func(doc *dom.Document, ev *journal.Event) (*axtree.Match, error) {
		m, err := fn(axtree.NewLocator(doc, s.reg))
		if err != nil {
			return nil, err
		}
		ev.Ref, ev.Count = m.Ref, m.Count
		return m, nil
	})
}
