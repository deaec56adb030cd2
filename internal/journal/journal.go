// Package journal appends every command a session executes to a SQLite
// table, for later inspection and replay debugging.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domref/internal/dbopen"
	"github.com/hazyhaar/domref/internal/idgen"
)

// Schema creates the events table.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	transport   TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	op          TEXT NOT NULL,
	page_url    TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '{}',
	ref         TEXT NOT NULL DEFAULT '',
	count       INTEGER NOT NULL DEFAULT 0,
	error_code  TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
`

// Event is one executed command.
type Event struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id,omitempty"`
	Transport  string          `json:"transport,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Op         string          `json:"op"`
	PageURL    string          `json:"page_url,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Ref        string          `json:"ref,omitempty"`
	Count      int             `json:"count,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  int64           `json:"created_at"` // unix ms
}

// Journal writes and reads events.
type Journal struct {
	DB     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the journal's logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// WithIDGenerator overrides the event id generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(j *Journal) { j.newID = g }
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return newJournal(db, opts), nil
}

// New wraps an already-open database and ensures the schema exists.
func New(db *sql.DB, opts ...Option) (*Journal, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return newJournal(db, opts), nil
}

func newJournal(db *sql.DB, opts []Option) *Journal {
	j := &Journal{
		DB:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.DB.Close()
}

// Record appends e, filling ID and CreatedAt when unset.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = j.newID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	params := string(e.Params)
	if params == "" {
		params = "{}"
	}
	_, err := j.DB.ExecContext(ctx,
		`INSERT INTO events (id, session_id, transport, request_id, op, page_url,
		params, ref, count, error_code, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Transport, e.RequestID, e.Op, e.PageURL, params, e.Ref, e.Count,
		e.ErrorCode, e.DurationMs, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", e.Op, err)
	}
	return nil
}

// Recent returns the newest events, optionally limited to one session.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, session_id, transport, request_id, op, page_url, params, ref, count, error_code,
		duration_ms, created_at FROM events`
	args := []any{}
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var params string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Transport, &e.RequestID, &e.Op, &e.PageURL, &params, &e.Ref,
			&e.Count, &e.ErrorCode, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		e.Params = json.RawMessage(params)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// OpStats counts events and errors per op.
type OpStats struct {
	Op     string `json:"op"`
	Calls  int    `json:"calls"`
	Errors int    `json:"errors"`
	AvgMs  int64  `json:"avg_ms"`
}

// Stats aggregates the whole journal by op.
func (j *Journal) Stats(ctx context.Context) ([]OpStats, error) {
	rows, err := j.DB.QueryContext(ctx,
		`SELECT op, COUNT(*), SUM(CASE WHEN error_code != '' THEN 1 ELSE 0 END),
		CAST(COALESCE(AVG(duration_ms), 0) AS INTEGER)
		FROM events GROUP BY op ORDER BY op`)
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	defer rows.Close()

	var out []OpStats
	for rows.Next() {
		var s OpStats
		if err := rows.Scan(&s.Op, &s.Calls, &s.Errors, &s.AvgMs); err != nil {
			return nil, fmt.Errorf("journal: scan stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Purge deletes events created before cutoff and returns how many went.
func (j *Journal) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.DB.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("journal: purge: %w", err)
	}
	return res.RowsAffected()
}

// RunRetention purges events older than keep every interval until ctx is
// cancelled.
func (j *Journal) RunRetention(ctx context.Context, keep, interval time.Duration) {
	if keep <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := j.Purge(ctx, time.Now().Add(-keep))
		if err != nil {
			j.logger.Warn("journal: retention", "error", err)
		} else if n > 0 {
			j.logger.Info("journal: retention purged", "events", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
