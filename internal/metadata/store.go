package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/imcrawler/imcrawler/internal/model"
)

// Header is the column layout of the metadata file.
var Header = []string{"filename", "image_url", "page_url", "content_hash"}

// State is what a previous run left behind.
type State struct {
	// SeenURLs holds every image URL already recorded.
	SeenURLs map[string]struct{}

	// SeenHashes holds every content hash already recorded.
	SeenHashes map[string]struct{}

	// Records is the number of rows read.
	Records int

	// MaxIndex is the highest image index in use, either by a row or by an
	// img_NNNNNN file in the output directory. -1 when there is none.
	MaxIndex int
}

// NextIndex returns the first index that is safe to allocate.
func (s State) NextIndex() int {
	return s.MaxIndex + 1
}

// EmptyState returns the state of a fresh output directory.
func EmptyState() State {
	return State{
		SeenURLs:   make(map[string]struct{}),
		SeenHashes: make(map[string]struct{}),
		MaxIndex:   -1,
	}
}

// Store reads and appends the metadata file.
// Append is safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store for the file at path. The file is not touched
// until Load or Append is called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the path of the metadata file.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record of the metadata file and scans the directory
// holding it for image files. A missing file yields an empty state.
func (s *Store) Load() (State, error) {
	state := EmptyState()

	if err := s.readRecords(&state); err != nil {
		return EmptyState(), err
	}

	maxOnDisk, err := scanMaxIndex(filepath.Dir(s.path))
	if err != nil {
		return EmptyState(), err
	}
	if maxOnDisk > state.MaxIndex {
		state.MaxIndex = maxOnDisk
	}
	return state, nil
}

func (s *Store) readRecords(state *State) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	cols := columns{filename: 0, imageURL: 1, pageURL: 2, contentHash: 3}
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorruptMetadata, s.path, err)
		}
		if first {
			first = false
			if isHeader(row) {
				cols = columnsFromHeader(row)
				continue
			}
		}

		rec, ok := cols.record(row)
		if !ok {
			// A row cut short by a crash mid-write.
			continue
		}
		state.Records++
		state.SeenURLs[rec.ImageURL] = struct{}{}
		if rec.ContentHash != "" {
			state.SeenHashes[rec.ContentHash] = struct{}{}
		}
		if idx, ok := model.ParseImageIndex(rec.Filename); ok && idx > state.MaxIndex {
			state.MaxIndex = idx
		}
	}
	return nil
}

// Append writes records to the end of the file, creating it with the header
// if it is empty, and syncs it to disk.
func (s *Store) Append(records []model.MetadataRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // output file in user-chosen dir
	if err != nil {
		return fmt.Errorf("failed to open metadata file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("failed to stat metadata file: %w", err)
	}

	// A crash mid-write can leave a row without its newline. Terminate it so
	// the first new row starts on a line of its own.
	if info.Size() > 0 {
		if err := terminateLastLine(f, info.Size()); err != nil {
			f.Close() //nolint:errcheck,gosec // already failing
			return err
		}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close() //nolint:errcheck,gosec // already failing
			return fmt.Errorf("failed to write metadata header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Filename, rec.ImageURL, rec.PageURL, rec.ContentHash}); err != nil {
			f.Close() //nolint:errcheck,gosec // already failing
			return fmt.Errorf("failed to write metadata record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("failed to flush metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	return f.Close()
}

// terminateLastLine writes a newline unless the file of the given size
// already ends with one.
func terminateLastLine(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("failed to read metadata tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to terminate metadata row: %w", err)
	}
	return nil
}

// columns maps record fields to CSV column positions. -1 marks an absent column.
// width is the number of header columns; shorter rows were cut short.
type columns struct {
	filename, imageURL, pageURL, contentHash int
	width                                    int
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), Header[0])
}

func columnsFromHeader(row []string) columns {
	c := columns{filename: -1, imageURL: -1, pageURL: -1, contentHash: -1, width: len(row)}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "filename":
			c.filename = i
		case "image_url", "url":
			c.imageURL = i
		case "page_url", "page":
			c.pageURL = i
		case "content_hash", "hash":
			c.contentHash = i
		}
	}
	return c
}

func (c columns) record(row []string) (model.MetadataRecord, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	if len(row) < c.width || c.filename < 0 || c.imageURL < 0 || c.filename >= len(row) || c.imageURL >= len(row) {
		return model.MetadataRecord{}, false
	}
	rec := model.MetadataRecord{
		Filename:    get(c.filename),
		ImageURL:    get(c.imageURL),
		PageURL:     get(c.pageURL),
		ContentHash: get(c.contentHash),
	}
	if rec.Filename == "" || rec.ImageURL == "" {
		return model.MetadataRecord{}, false
	}
	return rec, true
}

// scanMaxIndex returns the highest index among img_NNNNNN files in dir.
// Files can exist without a row when a task was aborted before its records
// were committed; their indices must not be handed out again.
func scanMaxIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return -1, nil
		}
		return -1, fmt.Errorf("failed to scan output directory: %w", err)
	}
	maxIndex := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if idx, ok := model.ParseImageIndex(e.Name()); ok && idx > maxIndex {
			maxIndex = idx
		}
	}
	return maxIndex, nil
}
