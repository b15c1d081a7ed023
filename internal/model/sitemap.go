package model

import (
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// PageStatus is the outcome of fetching a page.
type PageStatus string

const (
	// PageStatusOK means the page was fetched and its links were followed.
	PageStatusOK PageStatus = "ok"

	// PageStatusFailed means the fetch failed and the page is a dead end.
	PageStatusFailed PageStatus = "failed"

	// PageStatusPending means the page was discovered but never fetched,
	// which happens when a crawl is interrupted.
	PageStatusPending PageStatus = "pending"
)

// Page is one node of a crawled link graph.
type Page struct {
	// URL is the normalized absolute URL.
	URL string `json:"url"`

	// Status is the fetch outcome.
	Status PageStatus `json:"status"`

	// Error describes the fetch failure for failed pages.
	Error string `json:"error,omitempty"`

	// Children are the URLs this page links to in the graph, sorted.
	Children []string `json:"children,omitempty"`
}

// Edge is a parent to child link in the graph.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Sitemap is the finished link graph of one crawl.
//
// A Sitemap is built once by the crawler (or loaded from the database) and
// then only read. Pages are kept sorted by URL.
type Sitemap struct {
	// ID uniquely identifies the crawl run.
	ID string `json:"id"`

	// Seed is the normalized root URL. It is the root of the graph.
	Seed string `json:"seed"`

	// Host is the crawled host[:port].
	Host string `json:"host"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the crawl took.
	Duration time.Duration `json:"duration"`

	// Workers is the worker count the crawl ran with.
	Workers int `json:"workers"`

	// Pages holds every node of the graph.
	Pages []Page `json:"pages"`

	// Fingerprint is a SHA3-256 digest of the graph, see ComputeFingerprint.
	Fingerprint string `json:"fingerprint"`

	index map[string]int
}

// NewSitemap returns an empty Sitemap with a fresh run ID.
func NewSitemap(seed, host string, startedAt time.Time) *Sitemap {
	return &Sitemap{
		ID:        uuid.New().String(),
		Seed:      seed,
		Host:      host,
		StartedAt: startedAt,
		Pages:     make([]Page, 0),
	}
}

// AddPage appends a page. Call Finalize once all pages are added.
func (s *Sitemap) AddPage(p Page) {
	s.Pages = append(s.Pages, p)
	s.index = nil
}

// Finalize sorts pages and children and computes the fingerprint.
func (s *Sitemap) Finalize() {
	for i := range s.Pages {
		slices.Sort(s.Pages[i].Children)
	}
	slices.SortFunc(s.Pages, func(a, b Page) int {
		return strings.Compare(a.URL, b.URL)
	})
	s.index = nil
	s.Fingerprint = s.ComputeFingerprint()
}

// Lookup returns the page with the given URL.
func (s *Sitemap) Lookup(url string) (*Page, bool) {
	if s.index == nil {
		s.index = make(map[string]int, len(s.Pages))
		for i, p := range s.Pages {
			s.index[p.URL] = i
		}
	}
	i, ok := s.index[url]
	if !ok {
		return nil, false
	}
	return &s.Pages[i], true
}

// ChildrenOf returns the children of url, or nil if the page is unknown.
func (s *Sitemap) ChildrenOf(url string) []string {
	p, ok := s.Lookup(url)
	if !ok {
		return nil
	}
	return p.Children
}

// Edges returns every link of the graph, sorted by parent then child.
func (s *Sitemap) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, p := range s.Pages {
		for _, c := range p.Children {
			edges = append(edges, Edge{From: p.URL, To: c})
		}
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return edges
}

// Visit is one step of a Walk.
type Visit struct {
	// URL of the visited page.
	URL string

	// Depth is 0 for the seed and grows by one per link followed.
	Depth int

	// Revisit is true when the page was already reached earlier in the walk.
	// Its children are not walked again.
	Revisit bool

	// Page is nil if the URL has no page entry.
	Page *Page
}

// Walk visits the graph depth-first from the seed, children in URL order.
// Every page is expanded at most once, so the walk terminates on cyclic
// graphs. Returning false from fn stops the walk.
func (s *Sitemap) Walk(fn func(v Visit) bool) {
	if s.Seed == "" {
		return
	}
	seen := make(map[string]bool)

	var walk func(url string, depth int) bool
	walk = func(url string, depth int) bool {
		page, _ := s.Lookup(url)
		if seen[url] {
			return fn(Visit{URL: url, Depth: depth, Revisit: true, Page: page})
		}
		seen[url] = true

		if !fn(Visit{URL: url, Depth: depth, Page: page}) {
			return false
		}
		if page == nil {
			return true
		}
		for _, child := range page.Children {
			if !walk(child, depth+1) {
				return false
			}
		}
		return true
	}
	walk(s.Seed, 0)
}

// Stats summarizes a Sitemap.
type Stats struct {
	Pages    int `json:"pages"`
	OK       int `json:"ok"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
	Links    int `json:"links"`
	MaxDepth int `json:"max_depth"`
}

// Stats counts pages by status and links, and finds the deepest level at
// which a page is first reached from the seed.
func (s *Sitemap) Stats() Stats {
	var st Stats
	st.Pages = len(s.Pages)
	for _, p := range s.Pages {
		switch p.Status {
		case PageStatusOK:
			st.OK++
		case PageStatusFailed:
			st.Failed++
		default:
			st.Pending++
		}
		st.Links += len(p.Children)
	}
	s.Walk(func(v Visit) bool {
		if !v.Revisit && v.Depth > st.MaxDepth {
			st.MaxDepth = v.Depth
		}
		return true
	})
	return st
}

// ComputeFingerprint returns a hex SHA3-256 digest over the page statuses and
// the sorted edge list. Two crawls that found the same graph share a
// fingerprint regardless of run ID or timing.
func (s *Sitemap) ComputeFingerprint() string {
	pages := slices.Clone(s.Pages)
	slices.SortFunc(pages, func(a, b Page) int {
		return strings.Compare(a.URL, b.URL)
	})

	h := sha3.New256()
	for _, p := range pages {
		_, _ = h.Write([]byte("page " + p.URL + " " + string(p.Status) + "\n"))
	}
	for _, e := range s.Edges() {
		_, _ = h.Write([]byte("link " + e.From + " " + e.To + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
