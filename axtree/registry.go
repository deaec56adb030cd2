package axtree

import (
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// RefPrefix starts every ref handed out by a Registry.
const RefPrefix = "@e"

// DefaultRegistryLimit bounds a registry built with a non-positive limit.
const DefaultRegistryLimit = 4096

var refPattern = regexp.MustCompile(`^@e\d+$`)

// IsRef reports whether sel uses the ref grammar rather than a structural
// selector.
func IsRef(sel string) bool {
	return refPattern.MatchString(sel)
}

// Registry maps refs to live nodes for one epoch. An epoch starts at every
// Clear. Refs are never reused within an epoch.
//
// Refs bound by a projection are pinned for the whole epoch. Refs added
// with Allocate are bounded: once limit of them are held, allocating evicts
// the oldest, which then resolves as not found.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	limit   int
	counter int
	epoch   int
	entries map[string]*html.Node
	order   []string // evictable refs, oldest first
}

// NewRegistry returns an empty registry holding at most limit refs.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultRegistryLimit
	}
	return &Registry{limit: limit, entries: make(map[string]*html.Node)}
}

// Clear drops every entry, resets the counter and starts a new epoch.
func (r *Registry) Clear() {
	clear(r.entries)
	r.order = r.order[:0]
	r.counter = 0
	r.epoch++
}

// Allocate binds a fresh evictable ref to n.
func (r *Registry) Allocate(n *html.Node) string {
	for len(r.order) >= r.limit {
		delete(r.entries, r.order[0])
		r.order = r.order[1:]
	}
	ref := r.bind(n)
	r.order = append(r.order, ref)
	return ref
}

// pin binds a fresh ref to n that lives until the next Clear.
func (r *Registry) pin(n *html.Node) string {
	return r.bind(n)
}

func (r *Registry) bind(n *html.Node) string {
	r.counter++
	ref := RefPrefix + strconv.Itoa(r.counter)
	r.entries[ref] = n
	return ref
}

// Resolve returns the node bound to ref. Unknown, evicted and detached refs
// fail with ELEMENT_NOT_FOUND.
func (r *Registry) Resolve(ref string) (*html.Node, error) {
	n, ok := r.entries[ref]
	if !ok {
		return nil, Errorf(CodeNotFound, "ref %s not found; take a new snapshot", ref)
	}
	if !dom.Connected(n) {
		return nil, Errorf(CodeNotFound, "ref %s points to a removed element", ref)
	}
	return n, nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.entries) }

// Epoch counts the clears since creation.
func (r *Registry) Epoch() int { return r.epoch }
