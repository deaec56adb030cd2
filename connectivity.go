package domref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/internal/connectivity"
)

// RegisterConnectivity registers every operation on router under its own
// name. Handlers always answer with an encoded Response; command failures
// travel inside it, not as a Go error.
func (s *Session) RegisterConnectivity(router *connectivity.Router) {
	for _, op := range Ops() {
		router.RegisterLocal(op, s.handler(op))
	}
}

// attach registers the operations router does not serve yet.
func (s *Session) attach(router *connectivity.Router) {
	for _, op := range Ops() {
		if !router.Has(op) {
			router.RegisterLocal(op, s.handler(op))
		}
	}
}

func (s *Session) handler(op string) connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		return json.Marshal(s.Execute(ctx, op, payload))
	}
}

// routed is a Response as encoded by a router handler.
type routed struct {
	body []byte
	err  *axtree.Error
}

func (r routed) MarshalJSON() ([]byte, error) { return r.body, nil }

// Failed reports an error response.
func (r routed) Failed() bool { return r.err != nil }

// dispatch calls op through router. Router failures become error
// responses: an unknown op is INVALID_ARGUMENT, an expired call timeout
// is TIMEOUT and anything else is INTERNAL.
func dispatch(ctx context.Context, router *connectivity.Router, op string, params []byte) routed {
	out, err := router.Call(ctx, op, params)
	if err != nil {
		return encodeRouted(respond(nil, routerError(op, err)))
	}
	var head struct {
		Error *axtree.Error `json:"error"`
	}
	if err := json.Unmarshal(out, &head); err != nil {
		return encodeRouted(respond(nil, fmt.Errorf("domref: decode %s response: %w", op, err)))
	}
	return routed{body: out, err: head.Error}
}

func routerError(op string, err error) error {
	var notFound *connectivity.ErrServiceNotFound
	switch {
	case errors.As(err, &notFound):
		return axtree.Errorf(axtree.CodeInvalidArgument, "unknown operation %q", op)
	case errors.Is(err, context.DeadlineExceeded):
		return axtree.Errorf(axtree.CodeTimeout, "%s: %v", op, err)
	}
	return err
}

func encodeRouted(resp *Response) routed {
	body, _ := json.Marshal(resp)
	return routed{body: body, err: resp.Error}
}
