// Package connectivity dispatches named commands to in-process handlers.
// Every transport (HTTP, MCP, the CLI) calls through one Router so that
// middleware such as logging, timeouts and panic recovery applies
// uniformly.
//
//	router := connectivity.New(connectivity.WithLogger(logger))
//	router.Use(connectivity.Recovery(logger), connectivity.Timeout(30*time.Second))
//	router.RegisterLocal("snapshot", handleSnapshot)
//	resp, err := router.Call(ctx, "snapshot", payload)
package connectivity

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Handler is a transport-agnostic command function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router maps command names to handlers. Safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	mws      []HandlerMiddleware
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Use appends middleware applied to every call, outermost first.
func (r *Router) Use(mws ...HandlerMiddleware) {
	r.mu.Lock()
	r.mws = append(r.mws, mws...)
	r.mu.Unlock()
}

// RegisterLocal registers the handler for a command, replacing any
// previous one.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.handlers[service] = h
	r.mu.Unlock()
}

// Call dispatches payload to the named command.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[service]
	mws := r.mws
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrServiceNotFound{Service: service}
	}
	r.logger.DebugContext(ctx, "connectivity: dispatch", "service", service)
	return Chain(mws...)(h)(ctx, payload)
}

// Services lists the registered command names in sorted order.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Has reports whether a command is registered.
func (r *Router) Has(service string) bool {
	r.mu.RLock()
	_, ok := r.handlers[service]
	r.mu.RUnlock()
	return ok
}
