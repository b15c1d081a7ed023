package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/model"
	"github.com/nao1215/domainmap/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Compare stored crawls of a domain",
		Long: `History works on the sitemaps saved with 'domainmap crawl --save'.

By default it compares the two latest crawls of a domain and shows pages and
links that appeared or disappeared and pages whose fetch status changed.

Examples:
  # Compare the latest two crawls
  domainmap history example.com

  # List stored crawls of a domain
  domainmap history --list example.com

  # Compare the latest crawl with a specific earlier one
  domainmap history --with-run-id 3f0c9a2e-... example.com

  # Show a stored sitemap again
  domainmap history --show 3f0c9a2e-... --format dot example.com

  # List all domains in the database
  domainmap history --list-hosts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List stored crawls of the domain")
	cmd.Flags().BoolP("list-hosts", "L", false,
		"List all domains with stored crawls")
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare the latest crawl with this run (see --list)")
	cmd.Flags().String("show", "",
		"Print the stored sitemap of this run instead of a comparison")
	cmd.Flags().Bool("delete", false,
		"Delete the run given with --show from the database")
	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Output format: "+formatList(report.DiffFormats())+" (--show accepts every sitemap format)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl history database")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	host      string
	list      bool
	listHosts bool
	withRunID string
	show      string
	del       bool
	format    report.Format
	dbDir     string
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	// Flags are checked before the database is opened.
	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, opts, cmd.OutOrStdout())
}

func parseHistoryFlags(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listHosts, err = flags.GetBool("list-hosts"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = flags.GetString("with-run-id"); err != nil {
		return opts, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return opts, err
	}
	if opts.del, err = flags.GetBool("delete"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return opts, err
	}
	if opts.format, err = report.ParseFormat(format); err != nil {
		return opts, err
	}

	if opts.del && opts.show == "" {
		return opts, errors.New("--delete requires --show <run-id>")
	}
	if opts.listHosts {
		return opts, nil
	}
	if opts.show != "" && len(args) == 0 {
		return opts, nil
	}
	if len(args) == 0 {
		return opts, errors.New("domain is required (use --list-hosts to see stored domains)")
	}

	opts.host, err = hostKey(args[0])
	if err != nil {
		return opts, err
	}
	return opts, nil
}

// hostKey turns a domain or URL into the host[:port] crawls are stored under.
func hostKey(raw string) (string, error) {
	seed, err := config.NormalizeSeed(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %s", config.ErrInvalidDomain, raw)
	}
	return u.Host, nil
}

func runHistory(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	switch {
	case opts.listHosts:
		return listHosts(ctx, db, out)
	case opts.show != "" && opts.del:
		return deleteRun(ctx, db, opts.show, out)
	case opts.show != "":
		return showRun(ctx, db, opts, out)
	case opts.list:
		return listHistory(ctx, db, opts.host, out)
	default:
		return compareRuns(ctx, db, opts, out)
	}
}

func listHosts(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	hosts, err := db.ListHosts(ctx)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No crawled domains found in the database.")
		fmt.Fprintln(out, "\nUse 'domainmap crawl --save <domain>' to store a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawled domains (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(out, "  • %s\n", host)
	}
	fmt.Fprintln(out, "\nUse 'domainmap history --list <domain>' to see the crawls of a domain.")
	return nil
}

func listHistory(ctx context.Context, db *database.CrawlDB, host string, out io.Writer) error {
	runs, err := db.GetHistory(ctx, host)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawls found for %s\n", host)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", host, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %6s  %6s  %6s  %s\n", "Run ID", "Date", "Pages", "Links", "Failed", "Duration")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %6d  %6d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Pages,
			run.Links,
			run.Failed,
			run.Duration.Round(time.Millisecond),
		)
	}
	fmt.Fprintln(out, "\nUse 'domainmap history <domain>' to compare the latest two crawls.")
	return nil
}

func showRun(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	sitemap, err := db.GetSitemap(ctx, opts.show)
	if err != nil {
		return err
	}
	if opts.host != "" && sitemap.Host != opts.host {
		return fmt.Errorf("run %s belongs to %s, not %s", opts.show, sitemap.Host, opts.host)
	}
	return writeSitemap(opts.format, sitemap, out)
}

func deleteRun(ctx context.Context, db *database.CrawlDB, id string, out io.Writer) error {
	if err := db.DeleteRun(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s\n", id)
	return nil
}

func compareRuns(ctx context.Context, db *database.CrawlDB, opts historyOptions, out io.Writer) error {
	writer, err := report.NewDiffWriter(opts.format, out)
	if err != nil {
		return err
	}

	latest, err := db.GetLatestSitemaps(ctx, opts.host, 2)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return fmt.Errorf("no crawls found for %s", opts.host)
	}

	newer := latest[0]
	var older *model.Sitemap
	switch {
	case opts.withRunID != "":
		older, err = db.GetSitemap(ctx, opts.withRunID)
		if err != nil {
			return err
		}
		if older.Host != opts.host {
			return fmt.Errorf("run %s belongs to %s, not %s", opts.withRunID, older.Host, opts.host)
		}
		if older.ID == newer.ID {
			return fmt.Errorf("run %s is the latest crawl; pick an earlier one", opts.withRunID)
		}
	case len(latest) < 2:
		return fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(latest))
	default:
		older = latest[1]
	}

	_, err = writer.WriteDiff(model.Diff(older, newer))
	return err
}
