package crawler

import (
	"slices"
	"strings"
	"sync"
)

// NodeState is the fetch state of a page in the link graph.
type NodeState int

const (
	// StateDiscovered means the page is known but has not been fetched.
	StateDiscovered NodeState = iota

	// StateFetched means the page was fetched and its links expanded.
	StateFetched

	// StateFailed means fetching the page failed; it is a dead end.
	StateFailed
)

// String returns the state name.
func (s NodeState) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateFailed:
		return "failed"
	default:
		return "discovered"
	}
}

// Node is one page in the link graph. It is created only by a Registry,
// so there is exactly one Node per normalized URL.
type Node struct {
	url string

	mu       sync.Mutex
	children map[*Node]struct{}
	state    NodeState
	err      error
}

func newNode(u string) *Node {
	return &Node{
		url:      u,
		children: make(map[*Node]struct{}),
	}
}

// URL returns the normalized absolute URL of the page. It never changes.
func (n *Node) URL() string {
	return n.url
}

// AddChild attaches c as a child of n and reports whether it was newly added.
func (n *Node) AddChild(c *Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.children[c]; ok {
		return false
	}
	n.children[c] = struct{}{}
	return true
}

// Children returns a snapshot of the children of n, sorted by URL.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	out := make([]*Node, 0, len(n.children))
	for c := range n.children {
		out = append(out, c)
	}
	n.mu.Unlock()

	slices.SortFunc(out, func(a, b *Node) int {
		return strings.Compare(a.url, b.url)
	})
	return out
}

// State returns the fetch state of the page.
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Err returns the fetch failure, or nil.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func (n *Node) markFetched() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateFetched
}

func (n *Node) markFailed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = StateFailed
	n.err = err
}
