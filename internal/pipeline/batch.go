package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/domainmap/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor crawls several targets concurrently, each through its own
// pipeline.
type BatchProcessor struct {
	// factory builds a fresh pipeline per target.
	factory     func(target string) *Pipeline
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many targets are crawled at the same time.
// Values below one are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor returns a BatchProcessor using factory to build the
// pipeline of each target. The default concurrency is one.
func NewBatchProcessor(factory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs the pipeline of every target and returns one report per
// target, in the order of targets.
//
// A failing target does not stop the others; its error is in its report.
// Targets not started before ctx is canceled get a TimedOut report, and
// ctx.Err() is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.CrawlReport, error) {
	bp.logger.Info("starting batch",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	// Each goroutine writes only its own index.
	reports := make([]*model.CrawlReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			report := model.NewCrawlReport(target)
			reports[i] = report

			if err := gctx.Err(); err != nil {
				report.TimedOut = true
				report.Error = err
				report.ErrorMessage = err.Error()
				return err
			}

			bp.logger.Info("crawling target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			if err := bp.factory(target).Execute(gctx, report); err != nil {
				bp.logger.Warn("target failed", "target", target, "error", err)
				return nil
			}
			bp.logger.Info("target completed", "target", target)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch complete",
		"targets", len(targets),
		"elapsed", time.Since(start),
	)

	if err == nil {
		err = ctx.Err()
	}
	return reports, err
}
