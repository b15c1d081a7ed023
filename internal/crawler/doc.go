// Package crawler crawls a single web domain and builds its link graph.
//
// # Components
//
//   - Normalize, Resolve: canonical URL form, the node identity
//   - Scope, PathFilter: which links belong to the crawled domain
//   - Registry: exactly one Node per normalized URL
//   - Queue: unbounded FIFO with a timed Pop
//   - Engine: the worker pool tying them together
//   - HTTPFetcher: the Fetcher used outside of tests
//
// # Termination
//
// There is no central "done" signal. A worker stops when the queue has been
// empty for the idle timeout, and the crawl ends once every worker stopped.
// A page that takes longer than the idle timeout to fetch can therefore
// outlive idle peers; the remaining workers carry on alone.
//
// # Errors
//
// Timeouts, HTTP status failures and network failures make a page a dead end
// and the worker continues. Any other failure terminates the worker; its slot
// is refilled while work is still queued.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(client)
//	engine, err := crawler.New("http://example.org/", fetcher, crawler.WithWorkers(8))
//	if err != nil {
//		return err
//	}
//	result, err := engine.Run(ctx)
//	sitemap := result.Sitemap()
package crawler
