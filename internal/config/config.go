package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/domainmap/internal/crawler"
	"github.com/nao1215/domainmap/internal/report"
	"github.com/nao1215/domainmap/internal/transport"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "domainmap"

	// DefaultWorkers is the number of crawl workers per domain.
	DefaultWorkers = crawler.DefaultWorkers

	// DefaultTimeout is how long an idle worker waits for new work before it
	// stops. It is also the HTTP request timeout.
	DefaultTimeout = crawler.DefaultTimeout

	// DefaultBatchSize is the number of domains crawled at the same time.
	DefaultBatchSize = 1

	// DefaultFormat is the sitemap output format.
	DefaultFormat = report.FormatText

	// DefaultMaxBodySize limits how much of a response body is parsed.
	DefaultMaxBodySize = crawler.DefaultMaxBodySize

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = transport.DefaultTorStartupTimeout
)

// Config holds all options of a domainmap run. It is filled from CLI flags,
// validated once and then passed around by pointer.
type Config struct {
	// Targets are the seed domains or URLs. Validate replaces them with
	// their normalized seed URLs.
	Targets []string

	// Workers is the number of concurrent workers per crawl.
	// Zero crawls on a single goroutine.
	Workers int

	// Timeout is both the idle timeout of a worker waiting on the queue and
	// the HTTP request timeout.
	Timeout time.Duration

	// BatchSize is the number of domains crawled concurrently.
	BatchSize int

	// Format is the sitemap output format.
	Format report.Format

	// OutputFile is the path the sitemap is written to. Empty means stdout.
	// Parent directories are created as needed.
	OutputFile string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON lines.
	JSONLog bool

	// LogFile, when set, receives log output with size-based rotation.
	LogFile string

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty dials directly.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is sent with every request. Site configs may override it.
	UserAgent string

	// MaxBodySize is the maximum number of response bytes parsed per page.
	MaxBodySize int64

	// SaveToDB stores finished sitemaps in the crawl history database.
	SaveToDB bool

	// DBDir is the directory holding the crawl history database.
	DBDir string

	// ConfigFilePath is an explicit config file. When empty, FindConfigFile
	// searches the default locations.
	ConfigFilePath string

	// SiteConfigs are the per-site settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		Format:            DefaultFormat,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         crawler.DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the directory the crawl history database lives in.
// On Linux: ~/.local/share/domainmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the user configuration directory.
// On Linux: ~/.config/domainmap
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and normalizes Targets. It returns the
// first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}

	format, err := report.ParseFormat(string(c.Format))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}
	c.Format = format

	seeds := make([]string, 0, len(c.Targets))
	for _, target := range c.Targets {
		seed, err := NormalizeSeed(target)
		if err != nil {
			return err
		}
		host := hostOf(seed)
		if transport.IsOnionHost(host) {
			if !transport.IsValidV3Address(host) {
				return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, target)
			}
			if !c.UseTor && c.ProxyAddress == "" {
				return fmt.Errorf("%w: %s", ErrOnionRequiresTor, target)
			}
		}
		if !slices.Contains(seeds, seed) {
			seeds = append(seeds, seed)
		}
	}
	c.Targets = seeds

	return nil
}

// NormalizeSeed turns a domain or URL given on the command line into the
// normalized seed URL. A missing scheme defaults to http.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDomain, raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDomain, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %s", ErrInvalidDomain, raw)
	}

	return crawler.Normalize(u.String()), nil
}

// hostOf returns the lower-cased host name of a normalized seed URL.
func hostOf(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SiteConfigFor returns the file settings for host merged over the global
// UserAgent. It returns a zero SiteConfig when no file was loaded.
func (c *Config) SiteConfigFor(host string) SiteConfig {
	var sc SiteConfig
	if c.SiteConfigs != nil {
		sc = c.SiteConfigs.GetSiteConfig(host)
	}
	if sc.UserAgent == "" {
		sc.UserAgent = c.UserAgent
	}
	return sc
}
