package crawler

import (
	"net/url"
	"strings"
)

// Normalize returns the canonical form of a URL, used as the node identity
// in the link graph.
//
// Everything from the first '#' on is dropped, an empty query marker ("?")
// is collapsed, and scheme and host are lower-cased. An absolute URL with an
// empty path gets "/" so that "http://ex.org" and "http://ex.org/" are the
// same page. A string that does not parse is returned without its fragment.
//
// Normalize is idempotent.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Host != "" && u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}

// Resolve joins raw against base and returns the normalized absolute URL.
// It reports false when raw does not parse.
func Resolve(base *url.URL, raw string) (string, bool) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	return Normalize(base.ResolveReference(ref).String()), true
}
