package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/domainmap/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "domainmap.db"

// ErrRunNotFound is returned when no crawl run has the requested ID.
var ErrRunNotFound = errors.New("crawl run not found")

// CrawlDB stores finished sitemaps in SQLite so crawls of the same host can
// be listed and compared later.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the database in dbDir. Without CreateIfNotExists a missing
// database is an error.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		workers INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		link_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON crawl_runs(host, started_at);

	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, url)
	);

	CREATE TABLE IF NOT EXISTS links (
		run_id TEXT NOT NULL,
		from_url TEXT NOT NULL,
		to_url TEXT NOT NULL,
		PRIMARY KEY (run_id, from_url, to_url)
	);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveSitemap stores a sitemap with its pages and links in one transaction.
// Saving a run ID twice replaces the earlier copy.
func (cdb *CrawlDB) SaveSitemap(ctx context.Context, sitemap *model.Sitemap) (err error) {
	if sitemap == nil {
		return errors.New("sitemap is nil")
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteRun(ctx, tx, sitemap.ID); err != nil {
		return fmt.Errorf("failed to replace crawl run: %w", err)
	}

	stats := sitemap.Stats()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, host, seed, started_at, duration_ms, workers, page_count, link_count, failed_count, fingerprint)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sitemap.ID,
		sitemap.Host,
		sitemap.Seed,
		sitemap.StartedAt.UTC().Format(storedTimeLayout),
		sitemap.Duration.Milliseconds(),
		sitemap.Workers,
		stats.Pages,
		stats.Links,
		stats.Failed,
		sitemap.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `INSERT INTO pages (run_id, url, status, error) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (run_id, from_url, to_url) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	for _, p := range sitemap.Pages {
		if _, err = pageStmt.ExecContext(ctx, sitemap.ID, p.URL, string(p.Status), nullString(p.Error)); err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
		for _, child := range p.Children {
			if _, err = linkStmt.ExecContext(ctx, sitemap.ID, p.URL, child); err != nil {
				return fmt.Errorf("failed to save link %s -> %s: %w", p.URL, child, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sitemap: %w", err)
	}
	return nil
}

// RunMetadata summarizes a stored crawl without loading its graph.
type RunMetadata struct {
	ID          string
	Host        string
	Seed        string
	StartedAt   time.Time
	Duration    time.Duration
	Workers     int
	Pages       int
	Links       int
	Failed      int
	Fingerprint string
}

const runColumns = `id, host, seed, started_at, duration_ms, workers, page_count, link_count, failed_count, fingerprint`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var (
		meta       RunMetadata
		startedAt  string
		durationMS int64
	)
	err := row.Scan(&meta.ID, &meta.Host, &meta.Seed, &startedAt, &durationMS,
		&meta.Workers, &meta.Pages, &meta.Links, &meta.Failed, &meta.Fingerprint)
	if err != nil {
		return RunMetadata{}, err
	}
	meta.StartedAt = parseTimestamp(startedAt)
	meta.Duration = time.Duration(durationMS) * time.Millisecond
	return meta, nil
}

// GetHistory returns the runs of host, newest first.
func (cdb *CrawlDB) GetHistory(ctx context.Context, host string) ([]RunMetadata, error) {
	return cdb.queryRuns(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE host = ? ORDER BY started_at DESC, created_at DESC`, host)
}

func (cdb *CrawlDB) queryRuns(ctx context.Context, query string, args ...any) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// GetSitemap loads the full sitemap of a run.
func (cdb *CrawlDB) GetSitemap(ctx context.Context, id string) (*model.Sitemap, error) {
	meta, err := scanRun(cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}
	return cdb.loadSitemap(ctx, meta)
}

// GetLatestSitemaps loads up to limit sitemaps of host, newest first.
func (cdb *CrawlDB) GetLatestSitemaps(ctx context.Context, host string, limit int) ([]*model.Sitemap, error) {
	runs, err := cdb.queryRuns(ctx,
		`SELECT `+runColumns+` FROM crawl_runs WHERE host = ? ORDER BY started_at DESC, created_at DESC LIMIT ?`,
		host, limit)
	if err != nil {
		return nil, err
	}

	sitemaps := make([]*model.Sitemap, 0, len(runs))
	for _, meta := range runs {
		s, err := cdb.loadSitemap(ctx, meta)
		if err != nil {
			return nil, err
		}
		sitemaps = append(sitemaps, s)
	}
	return sitemaps, nil
}

// loadSitemap reads links and pages one query after the other; the pool
// has a single connection, so no two row sets may be open at once.
func (cdb *CrawlDB) loadSitemap(ctx context.Context, meta RunMetadata) (*model.Sitemap, error) {
	children, err := cdb.loadLinks(ctx, meta.ID)
	if err != nil {
		return nil, err
	}

	sitemap := &model.Sitemap{
		ID:        meta.ID,
		Seed:      meta.Seed,
		Host:      meta.Host,
		StartedAt: meta.StartedAt,
		Duration:  meta.Duration,
		Workers:   meta.Workers,
		Pages:     make([]model.Page, 0, meta.Pages),
	}

	rows, err := cdb.db.QueryContext(ctx, `SELECT url, status, error FROM pages WHERE run_id = ?`, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			page     model.Page
			status   string
			errorMsg sql.NullString
		)
		if err := rows.Scan(&page.URL, &status, &errorMsg); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Status = model.PageStatus(status)
		page.Error = errorMsg.String
		page.Children = children[page.URL]
		sitemap.AddPage(page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sitemap.Finalize()
	return sitemap, nil
}

func (cdb *CrawlDB) loadLinks(ctx context.Context, runID string) (map[string][]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT from_url, to_url FROM links WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	children := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		children[from] = append(children[from], to)
	}
	return children, rows.Err()
}

// ListHosts returns every host with at least one stored run, sorted.
func (cdb *CrawlDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT host FROM crawl_runs ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// DeleteRun removes a run with its pages and links.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) (err error) {
	var exists int
	err = cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_runs WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up crawl run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err = deleteRun(ctx, tx, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete crawl run: %w", err)
	}
	return tx.Commit()
}

func deleteRun(ctx context.Context, tx *sql.Tx, id string) error {
	for _, query := range []string{
		`DELETE FROM links WHERE run_id = ?`,
		`DELETE FROM pages WHERE run_id = ?`,
		`DELETE FROM crawl_runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// storedTimeLayout has a fixed width so stored timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats lists the layouts SQLite may hand back, most specific first.
var timestampFormats = []string{
	storedTimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for unparsable input.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
