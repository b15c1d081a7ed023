package crawler

import "context"

// Fetcher retrieves a page and returns the raw links found on it.
//
// Links are returned as they appear on the page: relative, absolute, or
// foreign. Failures should be reported as *FetchError so the engine can
// tell transient failures from fatal ones; any other error is fatal to the
// worker that observed it.
//
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]string, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]string, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]string, error) {
	return f(ctx, url)
}
