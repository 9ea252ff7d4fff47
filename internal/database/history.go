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

	"github.com/imcrawler/imcrawler/internal/model"
)

// DBFileName is the name of the history database inside the database directory.
const DBFileName = "imcrawler.db"

// HistoryDB stores crawl runs and the images they kept.
// It is safe for concurrent use; writes are serialized by the single
// connection the pool allows.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists false a missing file is ErrDatabaseNotFound.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per crawl run; counters are filled in by FinishRun
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		output_dir TEXT NOT NULL,
		metadata_path TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		sites_total INTEGER DEFAULT 0,
		sites_visited INTEGER DEFAULT 0,
		pages INTEGER DEFAULT 0,
		found INTEGER DEFAULT 0,
		downloaded INTEGER DEFAULT 0,
		duplicates INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		resumed INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_output ON runs(output_dir);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Images kept by a run
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		filename TEXT NOT NULL,
		image_url TEXT NOT NULL,
		page_url TEXT NOT NULL,
		content_hash TEXT,
		format TEXT,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		camera TEXT,
		taken_at TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
	CREATE INDEX IF NOT EXISTS idx_images_hash ON images(content_hash);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored crawl run.
type RunRecord struct {
	// ID is the unique identifier of the run.
	ID int64 `json:"id"`

	// Summary holds the counters of the run. FinishedAt is zero for a run
	// that never finished (the process was killed).
	Summary model.RunSummary `json:"summary"`
}

// ImageRecord is a stored kept image.
type ImageRecord struct {
	RunID  int64                `json:"run_id"`
	Record model.MetadataRecord `json:"record"`
	Info   model.ImageInfo      `json:"info"`
}

// StartRun inserts a run row for a run that is about to begin and returns
// its ID.
func (hdb *HistoryDB) StartRun(ctx context.Context, summary *model.RunSummary) (int64, error) {
	query := `
	INSERT INTO runs (output_dir, metadata_path, started_at, sites_total, resumed)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		summary.OutputDir,
		summary.MetadataPath,
		formatTimestamp(summary.StartedAt),
		summary.SitesTotal,
		summary.Resumed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

// AddImages stores the kept images of one task result under runID.
// Records and Images of the result are paired by filename.
func (hdb *HistoryDB) AddImages(ctx context.Context, runID int64, result model.TaskResult) error {
	if len(result.Records) == 0 {
		return nil
	}

	infos := make(map[string]model.ImageInfo, len(result.Images))
	for _, info := range result.Images {
		infos[info.Filename] = info
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
	INSERT INTO images (run_id, filename, image_url, page_url, content_hash, format, width, height, size, camera, taken_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, rec := range result.Records {
		info := infos[rec.Filename]
		if _, err := tx.ExecContext(ctx, query,
			runID,
			rec.Filename,
			rec.ImageURL,
			rec.PageURL,
			rec.ContentHash,
			info.Format,
			info.Width,
			info.Height,
			info.Size,
			info.Camera,
			info.TakenAt,
		); err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit images: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (hdb *HistoryDB) FinishRun(ctx context.Context, runID int64, summary *model.RunSummary) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		sites_visited = ?,
		pages = ?,
		found = ?,
		downloaded = ?,
		duplicates = ?,
		failed = ?,
		interrupted = ?
	WHERE id = ?
	`

	result, err := hdb.db.ExecContext(ctx, query,
		formatTimestamp(summary.FinishedAt),
		summary.SitesVisited,
		summary.Pages,
		summary.Found,
		summary.Downloaded,
		summary.Duplicates,
		summary.Failed,
		summary.Interrupted,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns runs newest first. A non-empty outputDir restricts the
// list to runs that wrote into that directory.
func (hdb *HistoryDB) ListRuns(ctx context.Context, outputDir string) ([]RunRecord, error) {
	query := `
	SELECT id, output_dir, metadata_path, started_at, finished_at, sites_total, sites_visited,
		pages, found, downloaded, duplicates, failed, resumed, interrupted
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 1)

	if outputDir != "" {
		query += " AND output_dir = ?"
		args = append(args, outputDir)
	}

	query += " ORDER BY started_at DESC, id DESC"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var started string
		var finished sql.NullString
		s := &run.Summary

		if err := rows.Scan(
			&run.ID,
			&s.OutputDir,
			&s.MetadataPath,
			&started,
			&finished,
			&s.SitesTotal,
			&s.SitesVisited,
			&s.Pages,
			&s.Found,
			&s.Downloaded,
			&s.Duplicates,
			&s.Failed,
			&s.Resumed,
			&s.Interrupted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		s.StartedAt = parseTimestamp(started)
		if finished.Valid {
			s.FinishedAt = parseTimestamp(finished.String)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ListImages returns the images kept by a run in insertion order.
func (hdb *HistoryDB) ListImages(ctx context.Context, runID int64) ([]ImageRecord, error) {
	var exists int
	err := hdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}

	query := `
	SELECT run_id, filename, image_url, page_url, content_hash, format, width, height, size, camera, taken_at
	FROM images
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []ImageRecord
	for rows.Next() {
		var img ImageRecord
		if err := rows.Scan(
			&img.RunID,
			&img.Record.Filename,
			&img.Record.ImageURL,
			&img.Record.PageURL,
			&img.Record.ContentHash,
			&img.Info.Format,
			&img.Info.Width,
			&img.Info.Height,
			&img.Info.Size,
			&img.Info.Camera,
			&img.Info.TakenAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.Info.Filename = img.Record.Filename
		images = append(images, img)
	}

	return images, rows.Err()
}

// storedTimeFormat is fixed-width so stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // storedTimeFormat and driver-formatted values
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// formatTimestamp stores times in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
