package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/imcrawler/imcrawler/internal/model"
)

func record(i int) model.MetadataRecord {
	return model.MetadataRecord{
		Filename:    model.ImageFilename(i, fmt.Sprintf("http://example.com/%d.png", i)),
		ImageURL:    fmt.Sprintf("http://example.com/%d.png", i),
		PageURL:     "http://example.com/",
		ContentHash: fmt.Sprintf("hash%d", i),
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "metadata.csv"))
	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 0 || len(state.SeenURLs) != 0 || len(state.SeenHashes) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
	if state.NextIndex() != 0 {
		t.Errorf("expected next index 0, got %d", state.NextIndex())
	}
}

func TestStoreAppendAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.csv")
	s := NewStore(path)

	if err := s.Append([]model.MetadataRecord{record(0), record(1)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append([]model.MetadataRecord{record(2)}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	t.Run("header written exactly once", func(t *testing.T) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
		}
		if lines[0] != "filename,image_url,page_url,content_hash" {
			t.Errorf("unexpected header %q", lines[0])
		}
		if strings.Count(string(data), "filename,") != 1 {
			t.Error("header repeated")
		}
	})

	t.Run("load returns seen urls, hashes and next index", func(t *testing.T) {
		state, err := NewStore(path).Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if state.Records != 3 {
			t.Errorf("expected 3 records, got %d", state.Records)
		}
		for i := range 3 {
			r := record(i)
			if _, ok := state.SeenURLs[r.ImageURL]; !ok {
				t.Errorf("missing url %s", r.ImageURL)
			}
			if _, ok := state.SeenHashes[r.ContentHash]; !ok {
				t.Errorf("missing hash %s", r.ContentHash)
			}
		}
		if state.NextIndex() != 3 {
			t.Errorf("expected next index 3, got %d", state.NextIndex())
		}
	})
}

func TestStoreAppendEmptyIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.csv")
	if err := NewStore(path).Append(nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no file, stat err = %v", err)
	}
}

func TestStoreLoadLegacyHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.csv")
	legacy := "filename,image_url,page_url\n" +
		"img_000000.jpg,http://a.example/x.jpg,http://a.example/\n" +
		"img_000007.png,http://a.example/y.png,http://a.example/\n"
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewStore(path)
	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 2 || len(state.SeenHashes) != 0 {
		t.Errorf("unexpected state %+v", state)
	}
	if state.NextIndex() != 8 {
		t.Errorf("expected next index 8, got %d", state.NextIndex())
	}

	// Appending to a legacy file keeps the existing header.
	if err := s.Append([]model.MetadataRecord{record(8)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	state, err = s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 3 {
		t.Errorf("expected 3 records, got %d", state.Records)
	}
}

func TestStoreLoadSkipsTruncatedRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.csv")
	content := "filename,image_url,page_url,content_hash\n" +
		"img_000000.jpg,http://a.example/x.jpg,http://a.example/,h0\n" +
		"img_000001.jpg\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	state, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 1 {
		t.Errorf("expected 1 record, got %d", state.Records)
	}
}

func TestStoreAppendAfterTornRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.csv")
	content := "filename,image_url,page_url,content_hash\n" +
		"img_000000.jpg,http://x/a.jpg,http://x/,h0\n" +
		"img_000001.jpg,http://x/b.j"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewStore(path)
	rec := model.MetadataRecord{
		Filename:    "img_000002.jpg",
		ImageURL:    "http://x/c.jpg",
		PageURL:     "http://x/",
		ContentHash: "h2",
	}
	if err := s.Append([]model.MetadataRecord{rec}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 2 {
		t.Errorf("expected 2 records, got %d", state.Records)
	}
	if _, ok := state.SeenURLs["http://x/c.jpg"]; !ok {
		t.Error("appended URL lost after torn row")
	}
	if _, ok := state.SeenHashes["h2"]; !ok {
		t.Error("appended hash lost after torn row")
	}
	if _, ok := state.SeenURLs["http://x/b.j"]; ok {
		t.Error("torn row should not be loaded")
	}
	if state.NextIndex() != 3 {
		t.Errorf("expected next index 3, got %d", state.NextIndex())
	}
}

func TestStoreLoadCountsOrphanFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.csv")
	s := NewStore(path)
	if err := s.Append([]model.MetadataRecord{record(0)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// A file from a task that never committed its records.
	if err := os.WriteFile(filepath.Join(dir, "img_000004.gif"), []byte("GIF89a"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".imcrawler-123.tmp"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.NextIndex() != 5 {
		t.Errorf("expected next index 5, got %d", state.NextIndex())
	}
	if state.Records != 1 {
		t.Errorf("orphan file must not count as a record, got %d", state.Records)
	}
}

func TestStoreConcurrentAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metadata.csv")
	s := NewStore(path)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append([]model.MetadataRecord{record(i)}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Records != 20 {
		t.Errorf("expected 20 records, got %d", state.Records)
	}
	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "filename,image_url") != 1 {
		t.Error("expected a single header")
	}
}
