package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/imcrawler/imcrawler/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func sampleSummary(outputDir string, started time.Time) *model.RunSummary {
	return &model.RunSummary{
		OutputDir:    outputDir,
		MetadataPath: filepath.Join(outputDir, "metadata.csv"),
		SitesTotal:   3,
		Resumed:      2,
		StartedAt:    started,
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("unexpected path %s", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dbDir := filepath.Join(t.TempDir(), "existing-db")

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db1.StartRun(ctx, sampleSummary("/out", time.Now())); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		runs, err := db2.ListRuns(ctx, "")
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected data to persist, got %d runs", len(runs))
		}
	})
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := sampleSummary("/data/example.com", started)

	id, err := db.StartRun(ctx, summary)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	runs, err := db.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if !runs[0].Summary.FinishedAt.IsZero() {
		t.Error("unfinished run has a finish time")
	}

	summary.SitesVisited = 2
	summary.Pages = 7
	summary.Found = 6
	summary.Downloaded = 5
	summary.Duplicates = 1
	summary.Failed = 0
	summary.Interrupted = true
	summary.FinishedAt = started.Add(90 * time.Second)

	if err := db.FinishRun(ctx, id, summary); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err = db.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	got := runs[0]
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	s := got.Summary
	if s.OutputDir != "/data/example.com" || s.SitesTotal != 3 || s.SitesVisited != 2 || s.Resumed != 2 {
		t.Errorf("unexpected run summary %+v", s)
	}
	if s.Pages != 7 || s.Found != 6 || s.Downloaded != 5 || s.Duplicates != 1 || s.Failed != 0 {
		t.Errorf("unexpected counters %+v", s)
	}
	if !s.Interrupted {
		t.Error("interrupted flag lost")
	}
	if !s.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", s.StartedAt, started)
	}
	if s.Elapsed() != 90*time.Second {
		t.Errorf("Elapsed = %v", s.Elapsed())
	}

	t.Run("finishing an unknown run fails", func(t *testing.T) {
		t.Parallel()
		if err := db.FinishRun(ctx, id+100, summary); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestListRunsFilterAndOrder(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, dir := range []string{"/a", "/b", "/a"} {
		if _, err := db.StartRun(ctx, sampleSummary(dir, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}

	all, err := db.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Summary.StartedAt.After(all[i-1].Summary.StartedAt) {
			t.Error("runs are not newest first")
		}
	}

	onlyA, err := db.ListRuns(ctx, "/a")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(onlyA) != 2 {
		t.Errorf("expected 2 runs for /a, got %d", len(onlyA))
	}
	for _, r := range onlyA {
		if r.Summary.OutputDir != "/a" {
			t.Errorf("filter leaked run for %s", r.Summary.OutputDir)
		}
	}
}

func TestImages(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.StartRun(ctx, sampleSummary("/out", time.Now()))
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	result := model.TaskResult{
		Seed: "http://example.com/",
		Records: []model.MetadataRecord{
			{Filename: "img_000001.jpg", ImageURL: "http://example.com/a.jpg", PageURL: "http://example.com/", ContentHash: "aa"},
			{Filename: "img_000002.png", ImageURL: "http://example.com/b.png", PageURL: "http://example.com/p", ContentHash: "bb"},
		},
		Images: []model.ImageInfo{
			{Filename: "img_000002.png", Format: "png", Width: 4, Height: 3, Size: 120},
			{Filename: "img_000001.jpg", Format: "jpeg", Width: 8, Height: 8, Size: 900, Camera: "Acme X1", TakenAt: "2024:05:01 12:00:00"},
		},
	}

	if err := db.AddImages(ctx, id, result); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := db.AddImages(ctx, id, model.TaskResult{}); err != nil {
		t.Fatalf("AddImages with no records: %v", err)
	}

	images, err := db.ListImages(ctx, id)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	first := images[0]
	if first.Record != result.Records[0] {
		t.Errorf("record = %+v, want %+v", first.Record, result.Records[0])
	}
	if first.Info != result.Images[1] {
		t.Errorf("info = %+v, want %+v", first.Info, result.Images[1])
	}
	if images[1].Info.Format != "png" || images[1].RunID != id {
		t.Errorf("unexpected second image %+v", images[1])
	}

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		if _, err := db.ListImages(ctx, id+1); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, s := range []string{
		formatTimestamp(want),
		"2026-02-03 04:05:06",
		"2026-02-03T04:05:06Z",
		"2026-02-03T04:05:06",
	} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if !parseTimestamp("not a time").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
