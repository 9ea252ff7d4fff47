package main

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	for _, name := range []string{"output", "run", "db-dir", "json", "markdown"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

// TestHistoryWithoutDatabase tests that a missing database is not an error.
func TestHistoryWithoutDatabase(t *testing.T) {
	t.Parallel()

	dbDir := filepath.Join(t.TempDir(), "none")
	stdout, _, err := execute(t, "history", "--db-dir", dbDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No crawl history found.") {
		t.Errorf("unexpected output %q", stdout)
	}
}

// TestHistoryFlags tests invalid history invocations.
func TestHistoryFlags(t *testing.T) {
	t.Parallel()

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()
		if _, _, err := execute(t, "history", "--db-dir", t.TempDir(), "-j", "-m"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		srv := newImageSite(t)
		env := newCrawlEnv(t, srv.URL+"/")
		if _, _, err := execute(t, append([]string{env.seedFile}, env.args()...)...); err != nil {
			t.Fatalf("crawl: %v", err)
		}
		if _, _, err := execute(t, "history", "--db-dir", env.dbDir, "--run", "999"); err == nil {
			t.Error("expected error for unknown run")
		}
	})

	t.Run("filter by output directory", func(t *testing.T) {
		t.Parallel()

		srv := newImageSite(t)
		env := newCrawlEnv(t, srv.URL+"/")
		if _, _, err := execute(t, append([]string{env.seedFile}, env.args()...)...); err != nil {
			t.Fatalf("crawl: %v", err)
		}

		stdout, _, err := execute(t, "history", "--db-dir", env.dbDir, "--output", env.outputDir)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(stdout, "Complete") {
			t.Errorf("expected the run, got:\n%s", stdout)
		}

		stdout, _, err = execute(t, "history", "--db-dir", env.dbDir, "--output", filepath.Join(t.TempDir(), "other"))
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(stdout, "No crawl history") {
			t.Errorf("expected no runs, got:\n%s", stdout)
		}
	})
}
