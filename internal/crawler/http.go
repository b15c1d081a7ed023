package crawler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
)

const (
	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (compatible; domainmap/1.0)"

	// DefaultMaxBodySize is the response body limit used when none is set.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// HTTPFetcher fetches pages over HTTP and extracts their links.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how much of each response body is parsed.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher returns a Fetcher backed by client. The client carries
// the request timeout, proxy and cookie configuration.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET request for pageURL and returns the links of the page.
// Non-2xx answers, timeouts and connection failures are returned as
// *FetchError. Responses that are not HTML yield no links.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindOther, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyError(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodySize))
		return nil, &FetchError{Kind: KindHTTPStatus, URL: pageURL, StatusCode: resp.StatusCode}
	}

	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, nil
	}

	links, err := ExtractLinks(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, classifyError(pageURL, err)
	}
	return links, nil
}

// isHTML reports whether a Content-Type header denotes an HTML document.
// A missing header is treated as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// classifyError maps a transport error onto a FetchError kind.
func classifyError(pageURL string, err error) *FetchError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
	case errors.As(err, &netErr), errors.Is(err, context.Canceled), errors.Is(err, io.ErrUnexpectedEOF):
		return &FetchError{Kind: KindNetwork, URL: pageURL, Err: err}
	default:
		return &FetchError{Kind: KindOther, URL: pageURL, Err: err}
	}
}
