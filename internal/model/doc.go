// Package model defines the data structures shared by the crawler, the
// report writers, the pipeline and the database.
//
//   - Sitemap and Page: the finished link graph of one crawl
//   - SitemapDiff: the change between two crawls of the same host
//   - CrawlReport: the per-target job record passed through the pipeline
//
// Keeping these types in their own package lets the crawler, report and
// database packages share them without import cycles. All of them serialize
// to JSON.
package model
