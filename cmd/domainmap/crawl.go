package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/crawler"
	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/log"
	"github.com/nao1215/domainmap/internal/model"
	"github.com/nao1215/domainmap/internal/pipeline"
	"github.com/nao1215/domainmap/internal/report"
	"github.com/nao1215/domainmap/internal/transport"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <domain>...",
		Short: "Crawl domains and print their sitemaps",
		Long: `Crawl visits every page of a domain reachable from the seed URL and prints
the link graph as a sitemap. A domain without scheme is crawled over http.

Only links to the seed's host are followed. Pages that cannot be fetched stay
in the sitemap as dead ends and never fail the run. Press Ctrl-C to stop
early; the pages found so far are still written.

Examples:
  # Crawl a site and print a text tree
  domainmap crawl example.com

  # Eight workers, write a Markdown sitemap to a file
  domainmap crawl -w 8 -f markdown -o out/sitemap.md https://example.com/

  # Two sites at once, saving both to the crawl history
  domainmap crawl --batch 2 --save example.com example.org

  # Crawl an onion site through an embedded Tor daemon
  domainmap crawl --tor exampleonionaddressxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion

  # Go through an existing SOCKS5 proxy
  domainmap crawl --proxy 127.0.0.1:9050 example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers per domain (0 crawls on a single goroutine)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Idle timeout of a worker and HTTP request timeout")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of domains crawled at the same time")
	cmd.Flags().StringP("user-agent", "A", crawler.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes parsed per page")

	cmd.Flags().StringP("format", "f", string(config.DefaultFormat),
		"Sitemap format: "+formatList(report.Formats()))
	cmd.Flags().StringP("output", "o", "",
		"Write the sitemap to this file instead of stdout (creates directories if needed)")
	cmd.Flags().Bool("stdout", false,
		"Also print the sitemap to stdout when --output is set")
	cmd.Flags().Bool("no-progress", false,
		"Do not show the progress spinner")

	cmd.Flags().StringP("proxy", "x", "",
		"Crawl through the SOCKS5 proxy at host:port")
	cmd.Flags().Bool("tor", false,
		"Crawl through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	cmd.Flags().BoolP("save", "s", false,
		"Store the sitemaps in the crawl history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl history database")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .domainmap in current, XDG config or home directory)")
	cmd.Flags().String("log-file", "",
		"Also write logs to this file, rotated by size")
	cmd.Flags().Bool("json-log", false,
		"Write logs as JSON lines")

	return cmd
}

// crawlOutput holds where a crawl run writes its results and status.
type crawlOutput struct {
	out      io.Writer
	errOut   io.Writer
	tee      bool
	progress bool
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := log.New(log.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLog,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	tee, err := cmd.Flags().GetBool("stdout")
	if err != nil {
		return err
	}
	noProgress, err := cmd.Flags().GetBool("no-progress")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, crawlOutput{
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		tee:      tee,
		progress: !noProgress,
	}, logger)
}

// getVerboseFlag reads --verbose from the command or its root.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the crawl command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	cfg.Format = report.Format(format)
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if cfg.JSONLog, err = flags.GetBool("json-log"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = args
	return cfg, nil
}

// runCrawl crawls every target of cfg and writes the sitemaps.
//
// Only setup problems and failures to write a sitemap are returned. A crawl
// interrupted through ctx still writes what was found.
func runCrawl(ctx context.Context, cfg *config.Config, out crawlOutput, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"workers", cfg.Workers,
		"batch", cfg.BatchSize,
		"proxy", cfg.ProxyAddress,
		"tor", cfg.UseTor,
	)

	client, cleanup, err := newTransportClient(ctx, cfg, out.errOut, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	var (
		bar  *progressbar.ProgressBar
		hook crawler.FetchHook
	)
	if out.progress {
		bar = newProgressBar(out.errOut)
		hook = func(*crawler.Node, error) {
			_ = bar.Add(1) //nolint:errcheck // display only
		}
	}

	pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(target, cfg, client, pipelineOpts,
				pipeline.WithPipelineDB(db),
				pipeline.WithPipelineFetchHook(hook),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports, err := bp.ProcessBatch(ctx, cfg.Targets)
	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // display only
	}
	if err != nil {
		logger.Warn("crawl interrupted, writing partial sitemaps", "reason", err)
		fmt.Fprintln(out.errOut, "Crawl interrupted, writing partial sitemaps.")
	}

	return writeReports(cfg, reports, out)
}

// newProgressBar returns a spinner counting fetched pages.
func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// newTransportClient returns the client the crawl dials through: an embedded
// Tor daemon, a SOCKS5 proxy, or direct connections. The returned cleanup
// function must be called once crawling is done.
func newTransportClient(ctx context.Context, cfg *config.Config, errOut io.Writer, logger *slog.Logger) (*transport.Client, func(), error) {
	var opts []transport.ClientOption
	if hasOnionTarget(cfg.Targets) {
		opts = append(opts, transport.WithInsecureSkipVerify(true))
	}

	switch {
	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, errOut, logger, opts)

	case cfg.ProxyAddress != "":
		client, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client, func() {}, nil

	default:
		client, err := transport.NewClient("", cfg.Timeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
}

// startEmbeddedTor boots a Tor daemon and returns a client dialing through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, errOut io.Writer, logger *slog.Logger, opts []transport.ClientOption) (*transport.Client, func(), error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintln(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := tor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	cleanup := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := tor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socks_addr", tor.SocksAddr(),
		"control_addr", tor.ControlAddr(),
	)

	client, err := tor.NewClient(cfg.Timeout, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		cleanup()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	fmt.Fprintf(errOut, "Tor is ready, SOCKS proxy at %s\n", tor.SocksAddr())
	return client, cleanup, nil
}

func hasOnionTarget(targets []string) bool {
	for _, target := range targets {
		if u, err := url.Parse(target); err == nil && transport.IsOnionHost(u.Hostname()) {
			return true
		}
	}
	return false
}

// writeReports writes the sitemap of every report. Targets without a
// sitemap are reported on errOut. With several targets and an output file,
// each sitemap goes to its own file named after the host.
func writeReports(cfg *config.Config, reports []*model.CrawlReport, out crawlOutput) error {
	multi := len(reports) > 1
	used := make(map[string]bool)

	var errs []error
	for i, r := range reports {
		if r.Sitemap == nil {
			msg := r.ErrorMessage
			if msg == "" {
				msg = "not crawled"
			}
			fmt.Fprintf(out.errOut, "%s: no sitemap: %s\n", r.Target, msg)
			continue
		}
		if r.TimedOut {
			fmt.Fprintf(out.errOut, "%s: crawl interrupted, sitemap is partial\n", r.Target)
		}

		if cfg.OutputFile == "" {
			if multi && i > 0 {
				fmt.Fprintln(out.out)
			}
			if err := writeSitemap(cfg.Format, r.Sitemap, out.out); err != nil {
				errs = append(errs, fmt.Errorf("failed to write sitemap of %s: %w", r.Target, err))
			}
			continue
		}

		path := cfg.OutputFile
		if multi {
			path = uniquePath(outputPathFor(cfg.OutputFile, r.Sitemap.Host), used)
		}
		if err := writeSitemapFile(cfg.Format, r.Sitemap, path, out); err != nil {
			errs = append(errs, fmt.Errorf("failed to write sitemap of %s: %w", r.Target, err))
			continue
		}
		fmt.Fprintf(out.errOut, "Sitemap of %s written to %s\n", r.Target, path)
	}
	return errors.Join(errs...)
}

// newSitemapWriter returns the writer for format, recording the program
// version in JSON output.
func newSitemapWriter(format report.Format, w io.Writer) (report.Writer, error) {
	if format == report.FormatJSON {
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	}
	return report.NewWriter(format, w)
}

func writeSitemap(format report.Format, sitemap *model.Sitemap, w io.Writer) error {
	writer, err := newSitemapWriter(format, w)
	if err != nil {
		return err
	}
	_, err = writer.Write(sitemap)
	return err
}

// writeSitemapFile writes the sitemap to path, and to out.out as well when
// out.tee is set.
func writeSitemapFile(format report.Format, sitemap *model.Sitemap, path string, out crawlOutput) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	writer, err := newSitemapWriter(format, f)
	if err != nil {
		return err
	}
	if out.tee {
		stdout, err := newSitemapWriter(format, out.out)
		if err != nil {
			return err
		}
		writer = report.NewMultiWriter(writer, stdout)
	}
	_, err = writer.Write(sitemap)
	return err
}

// outputPathFor inserts the host into the file name: out/map.txt becomes
// out/map-example.com.txt.
func outputPathFor(base, host string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	host = strings.NewReplacer(":", "_", "/", "_").Replace(host)
	return stem + "-" + host + ext
}

// uniquePath returns path, or path with a counter when it was used before.
func uniquePath(path string, used map[string]bool) string {
	candidate := path
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	used[candidate] = true
	return candidate
}

func formatList(formats []report.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}
