package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/imcrawler/imcrawler/internal/config"
	"github.com/imcrawler/imcrawler/internal/model"
)

// Status is the result kind of a single image download.
type Status int

const (
	// StatusFailed means nothing was written; see Outcome.Err.
	StatusFailed Status = iota

	// StatusSaved means the image was written to its destination.
	StatusSaved

	// StatusDuplicate means identical content was already kept; nothing was written.
	StatusDuplicate
)

// String returns a lowercase name for the status.
func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusDuplicate:
		return "duplicate"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome describes what Fetch did.
type Outcome struct {
	Status Status

	// Hash is the content fingerprint; set for saved and duplicate images.
	Hash string

	// Info is set for saved images.
	Info model.ImageInfo

	// Err is set for failed downloads.
	Err error
}

// Getter performs HTTP GET requests. *transport.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// HashGate decides whether content is new. *dedup.Gate implements it.
type HashGate interface {
	AdmitHash(hash string) bool
	ReleaseHash(hash string)
}

// Worker downloads images. It holds no per-image state and is safe for
// concurrent use.
type Worker struct {
	client   Getter
	gate     HashGate
	throttle time.Duration
	maxSize  int64
	logger   *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithThrottle sets the delay applied before each download.
func WithThrottle(d time.Duration) Option {
	return func(w *Worker) { w.throttle = d }
}

// WithMaxSize sets the largest accepted body in bytes. Zero means the default.
func WithMaxSize(n int64) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// NewWorker creates a Worker that fetches through client and consults gate
// for content duplicates.
func NewWorker(client Getter, gate HashGate, opts ...Option) *Worker {
	w := &Worker{
		client:  client,
		gate:    gate,
		maxSize: config.DefaultMaxImageSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch downloads imageURL and, unless its content was already kept,
// writes it to destPath. It never retries; retries happen in the transport.
func (w *Worker) Fetch(ctx context.Context, imageURL, destPath string) Outcome {
	if err := w.wait(ctx); err != nil {
		return failed(err)
	}

	data, err := w.download(ctx, imageURL)
	if err != nil {
		return failed(err)
	}

	hash, decoded, err := Fingerprint(data)
	if err != nil {
		return failed(err)
	}

	if !w.gate.AdmitHash(hash) {
		w.logger.Debug("duplicate image content", "url", imageURL, "hash", hash)
		return Outcome{Status: StatusDuplicate, Hash: hash}
	}

	if err := writeAtomic(destPath, data); err != nil {
		w.gate.ReleaseHash(hash)
		return failed(err)
	}

	ex := readEXIF(data, decoded.Format)
	return Outcome{
		Status: StatusSaved,
		Hash:   hash,
		Info: model.ImageInfo{
			Filename: filepath.Base(destPath),
			Format:   decoded.Format,
			Width:    decoded.Width,
			Height:   decoded.Height,
			Size:     int64(len(data)),
			Camera:   ex.Camera,
			TakenAt:  ex.TakenAt,
		},
	}
}

// wait sleeps for the throttle delay unless ctx ends first.
func (w *Worker) wait(ctx context.Context) error {
	if w.throttle <= 0 {
		return nil
	}
	timer := time.NewTimer(w.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) download(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := w.client.Get(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if resp.ContentLength > w.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, w.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > w.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, w.maxSize)
	}
	return data, nil
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place. On failure no file is left at path.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".imcrawler-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck,gosec // already failing
			os.Remove(tmp.Name()) //nolint:errcheck,gosec // best effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync image: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}
