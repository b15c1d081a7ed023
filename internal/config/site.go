package config

import (
	"maps"
	"net"
	"strings"
)

// SiteConfig holds crawl settings for one host.
type SiteConfig struct {
	// Cookie is sent with every request, e.g. "session=abc; lang=en".
	Cookie string `yaml:"cookie,omitempty" toml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent.
	UserAgent string `yaml:"userAgent,omitempty" toml:"userAgent,omitempty"`

	// Workers overrides the global worker count when positive.
	Workers int `yaml:"workers,omitempty" toml:"workers,omitempty"`

	// IgnorePatterns are path globs never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty" toml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict the crawl to matching paths.
	// The seed page is always fetched.
	FollowPatterns []string `yaml:"followPatterns,omitempty" toml:"followPatterns,omitempty"`
}

// File is the structure of a .domainmap configuration file.
type File struct {
	// Sites maps host names (without scheme) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty" toml:"sites,omitempty"`

	// Defaults apply to every site unless the site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the entry for host.
// Host matching ignores case and a port; an exact host:port entry wins.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Workers > 0 {
		result.Workers = site.Workers
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(host)
	candidates := []string{host}
	if h, _, err := net.SplitHostPort(host); err == nil {
		candidates = append(candidates, h)
	}
	for _, key := range candidates {
		for name, site := range cf.Sites {
			if strings.EqualFold(name, key) {
				return site, true
			}
		}
	}
	return SiteConfig{}, false
}
