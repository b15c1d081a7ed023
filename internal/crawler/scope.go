package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Scope decides which links belong to the crawled domain.
type Scope struct {
	host string
}

// NewScope returns a Scope for the given root host (host[:port]).
func NewScope(rootHost string) Scope {
	return Scope{host: strings.ToLower(rootHost)}
}

// Host returns the root host of the scope.
func (s Scope) Host() string {
	return s.host
}

// InScope reports whether a raw link, as found on a page, may be followed.
//
// The scheme must be http, https or empty, and the host must be the root
// host or empty (relative links). Empty links are rejected.
func (s Scope) InScope(raw string) bool {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	switch u.Scheme {
	case "", "http", "https":
	default:
		return false
	}

	return u.Host == "" || strings.EqualFold(u.Host, s.host)
}

// Contains reports whether an absolute, resolved URL lives on the root host.
// It closes the gap InScope leaves open for links such as "http:/path",
// which carry a scheme but no host and would otherwise resolve anywhere.
func (s Scope) Contains(abs string) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, s.host)
}

// PathFilter restricts the crawl to URL paths by glob pattern.
// The zero value allows every path.
type PathFilter struct {
	// Ignore lists patterns whose matches are never crawled.
	Ignore []string

	// Follow, when non-empty, lists the only patterns that are crawled.
	Follow []string
}

// Allow reports whether the path of abs passes the filter.
//
// Ignore patterns are checked first. When Follow patterns are set, the path
// must match at least one of them.
func (f PathFilter) Allow(abs string) bool {
	if len(f.Ignore) == 0 && len(f.Follow) == 0 {
		return true
	}

	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.Ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.Follow) == 0 {
		return true
	}
	for _, pattern := range f.Follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a path against a glob pattern.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use filepath.Match, and slash-free patterns are also
//     tried against the last path element
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
