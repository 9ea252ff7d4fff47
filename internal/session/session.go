package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imcrawler/imcrawler/internal/config"
	"github.com/imcrawler/imcrawler/internal/crawler"
	"github.com/imcrawler/imcrawler/internal/dedup"
	"github.com/imcrawler/imcrawler/internal/download"
	"github.com/imcrawler/imcrawler/internal/metadata"
	"github.com/imcrawler/imcrawler/internal/model"
	"github.com/imcrawler/imcrawler/internal/transport"
)

// History records runs and their kept images. *database.HistoryDB
// implements it.
type History interface {
	StartRun(ctx context.Context, summary *model.RunSummary) (int64, error)
	AddImages(ctx context.Context, runID int64, result model.TaskResult) error
	FinishRun(ctx context.Context, runID int64, summary *model.RunSummary) error
}

// Progress describes one finished seed.
type Progress struct {
	// Done is the number of seeds finished so far, including this one.
	Done int

	// Total is the number of seeds in the run.
	Total int

	// Result is what the task for this seed produced.
	Result model.TaskResult
}

// ProgressFunc is called once per finished (not skipped) seed, serialized.
type ProgressFunc func(Progress)

// Session runs a crawl over the seeds of a Config.
type Session struct {
	cfg      *config.Config
	shutdown *Shutdown
	client   *transport.Client
	history  History
	progress ProgressFunc
	onResume func(records int)
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClient sets the HTTP client. Without it Run builds one with NewClient.
func WithClient(c *transport.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithHistory records the run in h.
func WithHistory(h History) Option {
	return func(s *Session) { s.history = h }
}

// WithProgress sets a callback invoked after every finished seed.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) { s.progress = fn }
}

// WithResumeNotice sets a callback invoked before crawling when the output
// directory already holds records from a previous run.
func WithResumeNotice(fn func(records int)) Option {
	return func(s *Session) { s.onResume = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session. cfg must have passed Validate and have OutputDir set.
func New(cfg *config.Config, shutdown *Shutdown, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		shutdown: shutdown,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds the transport client described by cfg.
func NewClient(cfg *config.Config, logger *slog.Logger) (*transport.Client, error) {
	return transport.NewClient(
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithProxy(cfg.ProxyAddress),
		transport.WithRate(cfg.Rate),
		transport.WithHostPolicy(cfg),
		transport.WithLogger(logger),
	)
}

// Run crawls every seed and returns the run summary. The summary is
// returned even when the run was interrupted; an error means the run could
// not start (unreadable metadata, unusable output directory, bad client
// settings).
func (s *Session) Run(ctx context.Context) (*model.RunSummary, error) {
	cfg := s.cfg

	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	store := metadata.NewStore(cfg.MetadataPath())
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	if state.Records > 0 && s.onResume != nil {
		s.onResume(state.Records)
	}

	client := s.client
	if client == nil {
		if client, err = NewClient(cfg, s.logger); err != nil {
			return nil, err
		}
		defer client.CloseIdleConnections()
	}

	gate := dedup.NewGate(state)
	worker := download.NewWorker(client, gate,
		download.WithThrottle(cfg.Throttle),
		download.WithMaxSize(cfg.MaxImageSize),
		download.WithLogger(s.logger),
	)
	task := crawler.NewTask(crawler.NewFetcher(client, cfg.MaxPageSize), gate, worker, s.shutdown, cfg.OutputDir,
		crawler.WithExtensions(cfg.Extensions),
		crawler.WithTaskLogger(s.logger),
	)

	summary := &model.RunSummary{
		OutputDir:    cfg.OutputDir,
		MetadataPath: store.Path(),
		SitesTotal:   len(cfg.Seeds),
		Resumed:      state.Records,
		StartedAt:    time.Now(),
	}

	runID := s.startHistory(ctx, summary)

	s.logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"threads", cfg.Threads,
		"output", cfg.OutputDir,
		"resumed", state.Records,
		"next_index", gate.NextIndex(),
	)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(cfg.Threads)

	for _, seed := range cfg.Seeds {
		if s.shutdown.Requested() || ctx.Err() != nil {
			break
		}

		// Go blocks while all workers are busy; a seed dispatched after a
		// shutdown request returns Skipped without fetching anything.
		g.Go(func() error {
			result := task.Crawl(ctx, seed, cfg.DepthFor(seedHost(seed)))
			if result.Skipped {
				return nil
			}

			if err := gate.Commit(result, store.Append); err != nil {
				s.logger.Error("failed to write metadata", "seed", seed, "error", err)
			}
			if runID != 0 {
				if err := s.history.AddImages(context.WithoutCancel(ctx), runID, result); err != nil {
					s.logger.Warn("failed to record images in history", "seed", seed, "error", err)
				}
			}

			s.logger.Info("site finished",
				"seed", seed,
				"pages", result.Pages,
				"found", result.Found,
				"downloaded", result.Downloaded,
				"duplicates", result.Duplicates,
				"failed", result.Failed,
			)

			if s.progress != nil {
				mu.Lock()
				done++
				s.progress(Progress{Done: done, Total: len(cfg.Seeds), Result: result})
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks report through counters, never errors

	totals := gate.Summary()
	summary.SitesVisited = totals.SitesVisited
	summary.Pages = totals.Pages
	summary.Found = totals.Found
	summary.Downloaded = totals.Downloaded
	summary.Duplicates = totals.Duplicates
	summary.Failed = totals.Failed
	summary.Interrupted = s.shutdown.Requested() || ctx.Err() != nil
	summary.FinishedAt = time.Now()

	if runID != 0 {
		if err := s.history.FinishRun(context.WithoutCancel(ctx), runID, summary); err != nil {
			s.logger.Warn("failed to record run in history", "error", err)
		}
	}

	s.logger.Info("crawl finished",
		"sites_visited", summary.SitesVisited,
		"downloaded", summary.Downloaded,
		"interrupted", summary.Interrupted,
		"elapsed", summary.Elapsed(),
	)

	return summary, nil
}

// startHistory records the start of the run. History is best effort: a
// failure is logged and the run continues without it.
func (s *Session) startHistory(ctx context.Context, summary *model.RunSummary) int64 {
	if s.history == nil {
		return 0
	}
	id, err := s.history.StartRun(ctx, summary)
	if err != nil {
		s.logger.Warn("run history disabled", "error", err)
		return 0
	}
	return id
}

func seedHost(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Host
}
