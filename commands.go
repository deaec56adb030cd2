package domref

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	"github.com/hazyhaar/domref/axtree"
)

// Response is the wire envelope of every command.
type Response struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *axtree.Error `json:"error,omitempty"`
}

// Failed reports an error response.
func (r *Response) Failed() bool { return !r.Success }

func respond(data any, err error) *Response {
	if err != nil {
		return &Response{Error: axtree.AsError(err)}
	}
	return &Response{Success: true, Data: data}
}

type command func(ctx context.Context, s *Session, params json.RawMessage) (any, error)

// decode unmarshals params into a T. Empty params decode as {}.
func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, axtree.Errorf(axtree.CodeInvalidArgument, "invalid params: %v", err)
	}
	return v, nil
}

func with[T any](fn func(ctx context.Context, s *Session, p T) (any, error)) command {
	return func(ctx context.Context, s *Session, params json.RawMessage) (any, error) {
		p, err := decode[T](params)
		if err != nil {
			return nil, err
		}
		return fn(ctx, s, p)
	}
}

// Action results.
type (
	okResult       struct{ OK bool `json:"ok"` }
	textResult     struct{ Text string `json:"text"` }
	valueResult    struct{ Value string `json:"value"` }
	htmlResult     struct{ HTML string `json:"html"` }
	markdownResult struct{ Markdown string `json:"markdown"` }
	visibleResult  struct{ Visible bool `json:"visible"` }
	countResult    struct{ Count int `json:"count"` }
	navigateParams struct{ URL string `json:"url"` }
)

func ok(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

var commands = map[string]command{
	"snapshot": with(func(ctx context.Context, s *Session, p axtree.Options) (any, error) {
		return s.Snapshot(ctx, p)
	}),
	"findByRole": with(func(ctx context.Context, s *Session, p RoleQuery) (any, error) {
		return s.FindByRole(ctx, p)
	}),
	"findByText": with(func(ctx context.Context, s *Session, p TextQuery) (any, error) {
		return s.FindByText(ctx, p)
	}),
	"findByLabel": with(func(ctx context.Context, s *Session, p LabelQuery) (any, error) {
		return s.FindByLabel(ctx, p)
	}),
	"findByPlaceholder": with(func(ctx context.Context, s *Session, p PlaceholderQuery) (any, error) {
		return s.FindByPlaceholder(ctx, p)
	}),

	"click": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		return ok(s.Click(ctx, p.Selector))
	}),
	"fill": with(func(ctx context.Context, s *Session, p Input) (any, error) {
		return ok(s.Fill(ctx, p.Selector, p.Value))
	}),
	"check": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		return ok(s.Check(ctx, p.Selector))
	}),
	"uncheck": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		return ok(s.Uncheck(ctx, p.Selector))
	}),
	"select": with(func(ctx context.Context, s *Session, p Input) (any, error) {
		return ok(s.Select(ctx, p.Selector, p.Value))
	}),
	"navigate": with(func(ctx context.Context, s *Session, p navigateParams) (any, error) {
		return ok(s.Navigate(ctx, p.URL))
	}),

	"getText": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.GetText(ctx, p.Selector)
		return textResult{v}, err
	}),
	"getValue": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.GetValue(ctx, p.Selector)
		return valueResult{v}, err
	}),
	"getHTML": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.GetHTML(ctx, p.Selector)
		return htmlResult{v}, err
	}),
	"getMarkdown": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.GetMarkdown(ctx, p.Selector)
		return markdownResult{v}, err
	}),
	"isVisible": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.IsVisible(ctx, p.Selector)
		return visibleResult{v}, err
	}),
	"count": with(func(ctx context.Context, s *Session, p Target) (any, error) {
		v, err := s.Count(ctx, p.Selector)
		return countResult{v}, err
	}),
	"waitFor": with(func(ctx context.Context, s *Session, p Wait) (any, error) {
		return s.WaitFor(ctx, p)
	}),
}

// Ops lists the supported operation names in sorted order.
func Ops() []string {
	out := make([]string, 0, len(commands))
	for op := range commands {
		out = append(out, op)
	}
	slices.Sort(out)
	return out
}

// Execute runs the named operation with a JSON parameter object. It never
// returns a nil Response; failures are carried in Response.Error.
func (s *Session) Execute(ctx context.Context, op string, params json.RawMessage) *Response {
	cmd, found := commands[op]
	if !found {
		return respond(nil, axtree.Errorf(axtree.CodeInvalidArgument, "unknown operation %q", op))
	}
	return respond(cmd(ctx, s, params))
}
