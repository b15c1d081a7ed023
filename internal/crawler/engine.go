package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/nao1215/domainmap/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4

	// DefaultTimeout is how long an idle worker waits for work before it
	// concludes the crawl is over.
	DefaultTimeout = 10 * time.Second
)

// FetchHook is called after every fetch attempt with the page and the fetch
// error, if any. It is called from worker goroutines.
type FetchHook func(n *Node, err error)

// Engine crawls one domain and builds its link graph.
//
// Starting from the seed, workers pop pages from a shared queue, fetch them,
// and attach every in-scope link not yet visited as a child of the page.
// A worker stops when the queue stays empty for the idle timeout; the crawl
// is over once every worker has stopped.
type Engine struct {
	seed     *url.URL
	fetcher  Fetcher
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	filter   PathFilter
	hook     FetchHook
	scope    Scope
	registry *Registry
	visited  *visitedSet
	queue    *Queue

	ran     atomic.Bool
	fetched atomic.Int64
	failed  atomic.Int64
	fatal   atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent workers.
// Zero runs the crawl in a single loop on the calling goroutine.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithTimeout sets the queue idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPathFilter restricts which in-scope paths are crawled.
func WithPathFilter(f PathFilter) Option {
	return func(e *Engine) {
		e.filter = f
	}
}

// WithFetchHook registers a function called after each fetch.
func WithFetchHook(hook FetchHook) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// New returns an Engine that crawls the domain of seed using fetcher.
func New(seed string, fetcher Fetcher, opts ...Option) (*Engine, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	u, err := url.Parse(Normalize(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	e := &Engine{
		seed:    u,
		fetcher: fetcher,
		workers: DefaultWorkers,
		timeout: DefaultTimeout,
		scope:   NewScope(u.Host),
		visited: newVisitedSet(),
		queue:   NewQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.workers < 0 {
		return nil, ErrInvalidWorkers
	}
	if e.timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.registry = NewRegistry(u)

	return e, nil
}

// Result is the outcome of a crawl.
type Result struct {
	// Root is the seed page; the link graph hangs off it.
	Root *Node

	// Pages is the number of distinct pages discovered.
	Pages int

	// Fetched counts successful fetches.
	Fetched int

	// Failed counts fetches that failed with a transient error.
	Failed int

	// Fatal counts workers terminated by an unrecoverable error.
	Fatal int

	// Workers is the configured worker count.
	Workers int

	// StartedAt is when Run began.
	StartedAt time.Time

	// Elapsed is the wall time of Run.
	Elapsed time.Duration

	registry *Registry
	scope    Scope
}

// Run crawls the domain and returns the link graph.
//
// Fetch failures never make Run fail: they turn the page into a dead end.
// If ctx is canceled the partial result is returned together with ctx.Err().
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	start := time.Now()
	root := e.registry.GetOrCreate(e.seed.String())
	e.queue.Push(root)

	e.logger.Info("crawl started",
		"seed", root.URL(),
		"workers", e.workers,
		"timeout", e.timeout,
	)

	if e.workers == 0 {
		e.slot(ctx, 0)
	} else {
		var g errgroup.Group
		for i := range e.workers {
			g.Go(func() error {
				e.slot(ctx, i+1)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &Result{
		Root:      root,
		Pages:     e.registry.Len(),
		Fetched:   int(e.fetched.Load()),
		Failed:    int(e.failed.Load()),
		Fatal:     int(e.fatal.Load()),
		Workers:   e.workers,
		StartedAt: start,
		Elapsed:   time.Since(start),
		registry:  e.registry,
		scope:     e.scope,
	}

	e.logger.Info("crawl finished",
		"seed", root.URL(),
		"pages", res.Pages,
		"fetched", res.Fetched,
		"failed", res.Failed,
		"elapsed", res.Elapsed,
	)

	return res, ctx.Err()
}

// slot runs one worker and replaces it whenever it dies of a fatal error
// while work is still queued.
func (e *Engine) slot(ctx context.Context, id int) {
	for {
		err := e.work(ctx, id)
		if err == nil {
			return
		}

		e.fatal.Add(1)
		e.logger.Error("worker terminated", "worker", id, "error", err)

		if ctx.Err() != nil || e.queue.Len() == 0 {
			return
		}
		e.logger.Info("restarting worker", "worker", id, "queued", e.queue.Len())
	}
}

// work is the worker loop. It returns nil when the queue stays empty for the
// idle timeout or ctx is canceled, and an error wrapping errWorkerFatal when
// a fetch fails in a way the crawl does not recover from.
func (e *Engine) work(ctx context.Context, id int) error {
	e.logger.Debug("worker started", "worker", id)
	defer e.logger.Debug("worker stopped", "worker", id)

	for {
		n, ok := e.queue.Pop(ctx, e.timeout)
		if !ok {
			return nil
		}
		if !e.visited.claim(n) {
			continue
		}

		links, err := e.fetch(ctx, n)
		if e.hook != nil {
			e.hook(n, err)
		}

		if err != nil {
			n.markFailed(err)
			if IsTransient(err) || ctx.Err() != nil {
				e.failed.Add(1)
				e.logger.Warn("fetch failed", "url", n.URL(), "error", err)
				continue
			}
			return fmt.Errorf("%w: %w", errWorkerFatal, err)
		}

		n.markFetched()
		e.fetched.Add(1)
		e.expand(n, links)
	}
}

// fetch calls the Fetcher, turning a panic into an error.
func (e *Engine) fetch(ctx context.Context, n *Node) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			links = nil
			err = &FetchError{Kind: KindOther, URL: n.URL(), Err: fmt.Errorf("fetcher panic: %v", r)}
		}
	}()

	e.logger.Debug("fetching", "url", n.URL())
	return e.fetcher.Fetch(ctx, n.URL())
}

// expand attaches the in-scope, not yet visited links of n as its children
// and queues every newly attached child.
func (e *Engine) expand(n *Node, links []string) {
	base, err := url.Parse(n.URL())
	if err != nil {
		base = e.seed
	}

	for _, link := range links {
		if !e.scope.InScope(link) {
			continue
		}
		abs, ok := Resolve(base, link)
		if !ok || !e.scope.Contains(abs) || !e.filter.Allow(abs) {
			continue
		}

		child := e.registry.GetOrCreate(abs)
		if e.visited.contains(child) {
			continue
		}
		if n.AddChild(child) {
			e.queue.Push(child)
		}
	}
}

// Lookup returns the node for a URL discovered during the crawl.
func (r *Result) Lookup(raw string) (*Node, bool) {
	return r.registry.Lookup(raw)
}

// Nodes returns every discovered page, sorted by URL.
func (r *Result) Nodes() []*Node {
	return r.registry.Nodes()
}

// Sitemap converts the link graph into a model.Sitemap.
func (r *Result) Sitemap() *model.Sitemap {
	s := model.NewSitemap(r.Root.URL(), r.scope.Host(), r.StartedAt)
	s.Duration = r.Elapsed
	s.Workers = r.Workers

	for _, n := range r.registry.Nodes() {
		p := model.Page{URL: n.URL(), Children: make([]string, 0)}
		switch n.State() {
		case StateFetched:
			p.Status = model.PageStatusOK
		case StateFailed:
			p.Status = model.PageStatusFailed
			if err := n.Err(); err != nil {
				p.Error = err.Error()
			}
		default:
			p.Status = model.PageStatusPending
		}
		for _, c := range n.Children() {
			p.Children = append(p.Children, c.URL())
		}
		s.AddPage(p)
	}
	s.Finalize()
	return s
}
