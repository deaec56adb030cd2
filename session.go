// Package domref drives a live HTML document by role, visible text or label.
//
// A Session owns one Page and one ref registry. Every command runs under
// the session lock: the page is synced, the command runs against the fresh
// tree, and the outcome is journaled.
//
//	page, _ := htmlpage.FromHTML(src, "https://example.test/")
//	s := domref.NewSession(page, domref.WithLogger(logger))
//	snap, _ := s.Snapshot(ctx, axtree.Options{Interactive: true})
//	fmt.Println(snap.Snapshot)
//	_ = s.Click(ctx, "@e3")
package domref

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/dom"
	"github.com/hazyhaar/domref/internal/idgen"
	"github.com/hazyhaar/domref/internal/journal"
	"github.com/hazyhaar/domref/internal/kit"
)

// Recorder receives one event per executed command.
type Recorder interface {
	Record(ctx context.Context, e journal.Event) error
}

// JournalReader is the read side of a Recorder. When the session's
// recorder implements it, the HTTP surface serves the journal.
type JournalReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]*journal.Event, error)
	Stats(ctx context.Context) ([]journal.OpStats, error)
}

// Session serialises commands against one page.
type Session struct {
	mu  sync.Mutex
	id  string
	pg  Page
	reg *axtree.Registry

	logger       *slog.Logger
	journal      Recorder
	waitInterval time.Duration
	waitTimeout  time.Duration

	md     *converter.Converter
	policy *bluemonday.Policy
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRegistryLimit bounds the ref registry. Zero keeps the default.
func WithRegistryLimit(n int) Option {
	return func(s *Session) { s.reg = axtree.NewRegistry(n) }
}

// WithJournal records every command.
func WithJournal(r Recorder) Option {
	return func(s *Session) { s.journal = r }
}

// WithWaitInterval sets the poll interval of WaitFor.
func WithWaitInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.waitInterval = d
		}
	}
}

// WithWaitTimeout sets the WaitFor timeout used when the caller gives none.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// NewSession binds a session to page.
func NewSession(page Page, opts ...Option) *Session {
	s := &Session{
		id:           idgen.Prefixed("ses_", idgen.Default)(),
		pg:           page,
		reg:          axtree.NewRegistry(0),
		logger:       slog.Default(),
		waitInterval: 100 * time.Millisecond,
		waitTimeout:  5 * time.Second,
		policy:       bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Close closes the page.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pg.Close()
}

// sync refreshes the page and starts a new ref epoch when it navigated.
func (s *Session) sync(ctx context.Context) (*dom.Document, error) {
	navigated, err := s.pg.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("domref: sync: %w", err)
	}
	doc := s.pg.Document()
	if doc == nil {
		return nil, fmt.Errorf("domref: sync: page has no document")
	}
	if navigated {
		s.reg.Clear()
		s.logger.DebugContext(ctx, "domref: navigation, refs cleared", "url", doc.URL, "epoch", s.reg.Epoch())
	}
	return doc, nil
}

// run executes one command under the session lock. fn sees a freshly
// synced document and may fill the journal event's ref and count.
func run[T any](ctx context.Context, s *Session, op string, params any, fn func(doc *dom.Document, ev *journal.Event) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ev := journal.Event{
		SessionID: s.id,
		Transport: kit.GetTransport(ctx),
		RequestID: kit.GetRequestID(ctx),
		Op:        op,
	}
	if params != nil {
		if raw, err := json.Marshal(params); err == nil {
			ev.Params = raw
		}
	}

	var res T
	doc, err := s.sync(ctx)
	if err == nil {
		ev.PageURL = doc.URL
		res, err = fn(doc, &ev)
	}
	ev.DurationMs = time.Since(start).Milliseconds()

	attrs := []any{
		"op", op,
		"session_id", s.id,
		"transport", ev.Transport,
		"request_id", ev.RequestID,
		"duration_ms", ev.DurationMs,
	}
	if addr := kit.GetRemoteAddr(ctx); addr != "" {
		attrs = append(attrs, "remote_addr", addr)
	}
	if err != nil {
		ev.ErrorCode = string(axtree.AsError(err).Code)
		s.logger.InfoContext(ctx, "domref: command failed",
			append(attrs, "error_code", ev.ErrorCode, "error", err)...)
	} else {
		s.logger.DebugContext(ctx, "domref: command ok", append(attrs, "ref", ev.Ref)...)
	}

	if s.journal != nil {
		if jerr := s.journal.Record(context.WithoutCancel(ctx), ev); jerr != nil {
			s.logger.WarnContext(ctx, "domref: journal write failed", "op", op, "error", jerr)
		}
	}
	return res, err
}
