package crawler

import (
	"net/url"
	"slices"
	"strings"
	"sync"
)

// Registry maps normalized URLs to their unique Node.
// It is safe for concurrent use.
type Registry struct {
	base *url.URL

	mu    sync.Mutex
	nodes map[string]*Node
}

// NewRegistry returns an empty Registry. Relative URLs passed to GetOrCreate
// are resolved against base.
func NewRegistry(base *url.URL) *Registry {
	return &Registry{
		base:  base,
		nodes: make(map[string]*Node),
	}
}

// GetOrCreate returns the Node for raw, creating it if this is the first time
// the normalized URL is seen. Two concurrent calls for equivalent URLs get
// the same Node.
func (r *Registry) GetOrCreate(raw string) *Node {
	key := r.key(raw)

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[key]; ok {
		return n
	}
	n := newNode(key)
	r.nodes[key] = n
	return n
}

// Lookup returns the Node for raw without creating it.
func (r *Registry) Lookup(raw string) (*Node, bool) {
	key := r.key(raw)

	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[key]
	return n, ok
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// Nodes returns every registered node, sorted by URL.
func (r *Registry) Nodes() []*Node {
	r.mu.Lock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *Node) int {
		return strings.Compare(a.url, b.url)
	})
	return out
}

func (r *Registry) key(raw string) string {
	if r.base == nil {
		return Normalize(raw)
	}
	if abs, ok := Resolve(r.base, raw); ok {
		return abs
	}
	return Normalize(raw)
}

// visitedSet records which nodes have been claimed for fetching.
type visitedSet struct {
	mu  sync.Mutex
	set map[*Node]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{set: make(map[*Node]struct{})}
}

// claim marks n visited and reports whether this call did so. Exactly one
// of any number of concurrent claims for the same node returns true.
func (v *visitedSet) claim(n *Node) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.set[n]; ok {
		return false
	}
	v.set[n] = struct{}{}
	return true
}

func (v *visitedSet) contains(n *Node) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.set[n]
	return ok
}
