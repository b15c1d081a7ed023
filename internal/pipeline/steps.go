package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/crawler"
	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/model"
	"github.com/nao1215/domainmap/internal/transport"
)

// CrawlStep crawls the report target and attaches the resulting sitemap.
//
// A canceled crawl is not a step failure: the partial sitemap is attached
// and the report is marked TimedOut.
type CrawlStep struct {
	client      *http.Client
	workers     int
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	filter      crawler.PathFilter
	hook        crawler.FetchHook
	logger      *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlWorkers sets the number of crawl workers.
func WithCrawlWorkers(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.workers = n
	}
}

// WithCrawlTimeout sets the worker idle timeout.
func WithCrawlTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.timeout = d
	}
}

// WithCrawlUserAgent sets the User-Agent header.
func WithCrawlUserAgent(userAgent string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.userAgent = userAgent
	}
}

// WithCrawlMaxBodySize sets how many bytes of each page are parsed.
func WithCrawlMaxBodySize(size int64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxBodySize = size
	}
}

// WithCrawlIgnorePatterns sets path globs that are never crawled.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.filter.Ignore = patterns
	}
}

// WithCrawlFollowPatterns restricts the crawl to matching paths.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.filter.Follow = patterns
	}
}

// WithCrawlFetchHook registers a function called after every fetch.
func WithCrawlFetchHook(hook crawler.FetchHook) CrawlStepOption {
	return func(s *CrawlStep) {
		s.hook = hook
	}
}

// WithCrawlLogger sets the logger.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep returns a CrawlStep fetching pages with client.
func NewCrawlStep(client *http.Client, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		client:      client,
		workers:     config.DefaultWorkers,
		timeout:     config.DefaultTimeout,
		userAgent:   crawler.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Target.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	fetcher := crawler.NewHTTPFetcher(s.client,
		crawler.WithUserAgent(s.userAgent),
		crawler.WithMaxBodySize(s.maxBodySize),
	)

	opts := []crawler.Option{
		crawler.WithWorkers(s.workers),
		crawler.WithTimeout(s.timeout),
		crawler.WithPathFilter(s.filter),
		crawler.WithLogger(s.logger),
	}
	if s.hook != nil {
		opts = append(opts, crawler.WithFetchHook(s.hook))
	}

	engine, err := crawler.New(report.Target, fetcher, opts...)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	result, err := engine.Run(ctx)
	if result != nil {
		report.Sitemap = result.Sitemap()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("crawl interrupted, keeping partial sitemap",
				"target", report.Target,
				"reason", err,
			)
			report.TimedOut = true
			return nil
		}
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

// SaveStep stores the sitemap of a report in the crawl history database.
type SaveStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// NewSaveStep returns a SaveStep writing to db.
func NewSaveStep(db *database.CrawlDB, logger *slog.Logger) *SaveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves report.Sitemap. Reports without a sitemap are skipped.
func (s *SaveStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.Sitemap == nil {
		s.logger.Debug("no sitemap to save", "target", report.Target)
		return nil
	}
	if err := s.db.SaveSitemap(ctx, report.Sitemap); err != nil {
		return fmt.Errorf("failed to save sitemap: %w", err)
	}
	report.Saved = true
	s.logger.Info("sitemap saved",
		"target", report.Target,
		"run_id", report.Sitemap.ID,
		"pages", len(report.Sitemap.Pages),
	)
	return nil
}

// defaultPipelineConfig holds the optional parts of DefaultPipeline.
type defaultPipelineConfig struct {
	db   *database.CrawlDB
	hook crawler.FetchHook
}

// DefaultPipelineOption configures DefaultPipeline.
type DefaultPipelineOption func(*defaultPipelineConfig)

// WithPipelineDB appends a SaveStep writing to db.
func WithPipelineDB(db *database.CrawlDB) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.db = db
	}
}

// WithPipelineFetchHook passes hook on to the crawl engine.
func WithPipelineFetchHook(hook crawler.FetchHook) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.hook = hook
	}
}

// DefaultPipeline builds the pipeline for one target: a crawl configured from
// cfg merged with the site settings of the target host, then a save when a
// database is given.
func DefaultPipeline(target string, cfg *config.Config, client *transport.Client, pipelineOpts []Option, opts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	var dc defaultPipelineConfig
	for _, opt := range opts {
		opt(&dc)
	}

	var host string
	if u, err := url.Parse(target); err == nil {
		host = u.Hostname()
	}
	site := cfg.SiteConfigFor(host)

	workers := cfg.Workers
	if site.Workers > 0 {
		workers = site.Workers
	}

	logger := p.logger.With("target", target)
	p.AddStep(NewCrawlStep(client.HTTPClientWithConfig(site.Cookie, site.Headers),
		WithCrawlWorkers(workers),
		WithCrawlTimeout(cfg.Timeout),
		WithCrawlUserAgent(site.UserAgent),
		WithCrawlMaxBodySize(cfg.MaxBodySize),
		WithCrawlIgnorePatterns(site.IgnorePatterns),
		WithCrawlFollowPatterns(site.FollowPatterns),
		WithCrawlFetchHook(dc.hook),
		WithCrawlLogger(logger),
	))
	if dc.db != nil {
		p.AddStep(NewSaveStep(dc.db, logger))
	}

	return p
}
