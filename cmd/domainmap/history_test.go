package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/model"
)

// seedHistory stores two crawls of example.com: the newer one found /new and
// lost /old.
func seedHistory(t *testing.T) (dbDir string, older, newer *model.Sitemap) {
	t.Helper()

	dbDir = t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	build := func(startedAt time.Time, child string) *model.Sitemap {
		s := model.NewSitemap("http://example.com/", "example.com", startedAt)
		s.AddPage(model.Page{URL: "http://example.com/", Status: model.PageStatusOK, Children: []string{child}})
		s.AddPage(model.Page{URL: child, Status: model.PageStatusOK})
		s.Finalize()
		return s
	}
	now := time.Now()
	older = build(now.Add(-time.Hour), "http://example.com/old")
	newer = build(now, "http://example.com/new")

	ctx := context.Background()
	for _, s := range []*model.Sitemap{older, newer} {
		if err := db.SaveSitemap(ctx, s); err != nil {
			t.Fatalf("failed to save sitemap: %v", err)
		}
	}
	return dbDir, older, newer
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("compares latest two crawls", func(t *testing.T) {
		t.Parallel()

		dbDir, older, newer := seedHistory(t)
		stdout, _, err := runCLI(t, "history", "--db-dir", dbDir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			older.ID,
			newer.ID,
			"+ page http://example.com/new",
			"- page http://example.com/old",
			"+ link http://example.com/ -> http://example.com/new",
		} {
			if !strings.Contains(stdout, want) {
				t.Errorf("output does not contain %q:\n%s", want, stdout)
			}
		}
	})

	t.Run("json diff", func(t *testing.T) {
		t.Parallel()

		dbDir, _, _ := seedHistory(t)
		stdout, _, err := runCLI(t, "history", "--db-dir", dbDir, "-f", "json", "http://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var diff model.SitemapDiff
		if err := json.Unmarshal([]byte(stdout), &diff); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(diff.AddedPages) != 1 || len(diff.RemovedPages) != 1 {
			t.Errorf("unexpected diff: %+v", diff)
		}
	})

	t.Run("with run id", func(t *testing.T) {
		t.Parallel()

		dbDir, older, newer := seedHistory(t)
		stdout, _, err := runCLI(t, "history", "--db-dir", dbDir, "-i", older.ID, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, older.ID+" -> "+newer.ID) {
			t.Errorf("unexpected output:\n%s", stdout)
		}

		_, _, err = runCLI(t, "history", "--db-dir", dbDir, "-i", newer.ID, "example.com")
		if err == nil {
			t.Error("comparing the latest crawl with itself should fail")
		}
	})

	t.Run("lists history and hosts", func(t *testing.T) {
		t.Parallel()

		dbDir, older, _ := seedHistory(t)
		stdout, _, err := runCLI(t, "history", "--db-dir", dbDir, "--list", "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(2 crawls)") || !strings.Contains(stdout, older.ID) {
			t.Errorf("unexpected listing:\n%s", stdout)
		}

		stdout, _, err = runCLI(t, "history", "--db-dir", dbDir, "--list-hosts")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "• example.com") {
			t.Errorf("unexpected host listing:\n%s", stdout)
		}
	})

	t.Run("shows and deletes a run", func(t *testing.T) {
		t.Parallel()

		dbDir, older, _ := seedHistory(t)
		stdout, _, err := runCLI(t, "history", "--db-dir", dbDir, "--show", older.ID, "-f", "dot")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "digraph") {
			t.Errorf("expected DOT output:\n%s", stdout)
		}

		if _, _, err := runCLI(t, "history", "--db-dir", dbDir, "--show", older.ID, "--delete"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		_, _, err = runCLI(t, "history", "--db-dir", dbDir, "--show", older.ID)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
	})

	t.Run("unknown domain", func(t *testing.T) {
		t.Parallel()

		dbDir, _, _ := seedHistory(t)
		_, _, err := runCLI(t, "history", "--db-dir", dbDir, "other.example")
		if err == nil || !strings.Contains(err.Error(), "no crawls found") {
			t.Errorf("expected 'no crawls found', got %v", err)
		}
	})
}

func TestParseHistoryFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "domain required", args: []string{}, wantErr: true},
		{name: "list hosts needs no domain", args: []string{"--list-hosts"}},
		{name: "delete needs show", args: []string{"--delete", "example.com"}, wantErr: true},
		{name: "unknown format", args: []string{"-f", "pdf", "example.com"}, wantErr: true},
		{name: "bad domain", args: []string{"ftp://example.com"}, wantErr: true},
		{name: "domain", args: []string{"example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewHistoryCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			_, err := parseHistoryFlags(cmd, cmd.Flags().Args())
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHostKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "example.com", want: "example.com"},
		{in: "HTTPS://Example.COM/path", want: "example.com"},
		{in: "127.0.0.1:8080", want: "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := hostKey(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("hostKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := hostKey(""); !errors.Is(err, config.ErrInvalidDomain) {
		t.Errorf("expected ErrInvalidDomain for empty input, got %v", err)
	}
}
