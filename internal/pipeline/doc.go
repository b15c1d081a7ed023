// Package pipeline runs the per-target processing of a crawl run.
//
// A Pipeline executes Steps in order against a model.CrawlReport. The default
// pipeline crawls the target (CrawlStep) and, when history is enabled, stores
// the sitemap (SaveStep). BatchProcessor runs one pipeline per target with a
// bounded number of targets in flight.
//
//	factory := func(target string) *pipeline.Pipeline {
//		return pipeline.DefaultPipeline(target, cfg, client, nil)
//	}
//	reports, err := pipeline.NewBatchProcessor(factory).ProcessBatch(ctx, cfg.Targets)
package pipeline
