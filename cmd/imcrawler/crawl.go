package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/imcrawler/imcrawler/internal/config"
	"github.com/imcrawler/imcrawler/internal/database"
	applog "github.com/imcrawler/imcrawler/internal/log"
	"github.com/imcrawler/imcrawler/internal/model"
	"github.com/imcrawler/imcrawler/internal/report"
	"github.com/imcrawler/imcrawler/internal/session"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed_list_file>",
		Short: "Crawl the seed sites and download their images",
		Long: `Crawl reads a seed list (one URL per line, '#' starts a comment) and crawls
every site concurrently, downloading the images it finds into one output
directory.

Each site is crawled depth-first, following same-origin links up to --depth
levels. Images are kept once: the same URL or the same content found again
is counted as a duplicate. Every kept image is recorded in metadata.csv in
the output directory, so running the same command again resumes an
interrupted crawl without downloading anything twice.

Press Ctrl+C once to stop after the in-flight downloads finish. Press it
again to abort immediately.

Examples:
  # Crawl the seed pages only
  imcrawler crawl seeds.txt

  # Follow links two levels deep with 8 workers
  imcrawler crawl -d 2 -n 8 seeds.txt

  # Only PNG and JPEG, into a custom directory
  imcrawler crawl -x png,jpg -o photos seeds.txt

  # Be gentle: one image per second, at most 5 requests per second overall
  imcrawler crawl --throttle 1 --rate 5 seeds.txt

  # Crawl through a SOCKS5 proxy
  imcrawler crawl --proxy 127.0.0.1:9050 seeds.txt

Configuration file (.imcrawler) example:
  sites:
    example.com:
      username: "alice"
      password: "secret"
      depth: 3
    gallery.example.org:
      cookie: "session=abc123"
      headers:
        Referer: "https://gallery.example.org/"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)

	return cmd
}

// addCrawlFlags registers the crawl flags on cmd. The root command carries
// them too so "imcrawler seeds.txt" accepts the same options.
func addCrawlFlags(cmd *cobra.Command) {
	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Output directory (default: registrable domain of the first seed)")
	cmd.Flags().StringP("log", "l", "",
		"Write the log to this file instead of stderr (.json for JSON lines)")

	// Crawl behavior flags
	cmd.Flags().IntP("threads", "n", config.DefaultThreads(),
		"Number of sites crawled concurrently")
	cmd.Flags().StringSliceP("ext", "x", config.DefaultExtensions(),
		"Image extensions to download")
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Levels of same-origin links to follow from each seed")
	cmd.Flags().Float64("throttle", config.DefaultThrottle.Seconds(),
		"Seconds to wait before each image download")

	// Transport flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64("rate", config.DefaultRate,
		"Maximum requests per second across all workers (0 = unlimited)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-size", config.DefaultMaxImageSize,
		"Maximum image size in bytes")
	cmd.Flags().StringP("username", "u", "",
		"Username for HTTP basic authentication")
	cmd.Flags().StringP("password", "P", "",
		"Password for HTTP basic authentication")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .imcrawler in current or home directory, then $XDG_CONFIG_HOME/imcrawler/config.yaml)")

	// History flags
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Print the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Also write the summary as Markdown to this file")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdown := session.NewShutdown()
	stopSignals := watchSignals(cmd.ErrOrStderr(), shutdown, cancel, logger)
	defer stopSignals()

	summary, err := runCrawl(ctx, cmd, cfg, shutdown, logger)
	if err != nil {
		return err
	}

	return outputSummary(cmd.OutOrStdout(), cfg, summary)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) == 0 {
		return nil, errors.New("no seed list file provided")
	}
	cfg.SeedFile = args[0]

	var err error
	cfg.Seeds, err = config.LoadSeeds(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = config.DefaultOutputDir(cfg.Seeds[0])
	}
	cfg.OutputDir, err = filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory: %w", err)
	}

	cfg.LogFile, err = cmd.Flags().GetString("log")
	if err != nil {
		return nil, err
	}

	cfg.Threads, err = cmd.Flags().GetInt("threads")
	if err != nil {
		return nil, err
	}

	exts, err := cmd.Flags().GetStringSlice("ext")
	if err != nil {
		return nil, err
	}
	cfg.Extensions = config.NormalizeExtensions(exts)

	cfg.Depth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	throttle, err := cmd.Flags().GetFloat64("throttle")
	if err != nil {
		return nil, err
	}
	cfg.Throttle = time.Duration(throttle * float64(time.Second))

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Rate, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.MaxImageSize, err = cmd.Flags().GetInt64("max-size")
	if err != nil {
		return nil, err
	}

	cfg.Username, err = cmd.Flags().GetString("username")
	if err != nil {
		return nil, err
	}

	cfg.Password, err = cmd.Flags().GetString("password")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogger creates the structured logger. With --log the log goes to that
// file (JSON lines when it ends in .json); otherwise warnings go to stderr.
// The returned func closes the log file.
func setupLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return applog.NewSecureLogger(stderr, cfg.Verbose), func() {}, nil
	}

	if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	jsonFormat := strings.EqualFold(filepath.Ext(cfg.LogFile), ".json")
	closeFn := func() {
		_ = f.Close() //nolint:errcheck // Best effort on exit
	}
	return applog.NewSecureFileLogger(f, cfg.Verbose, jsonFormat), closeFn, nil
}

// watchSignals turns the first interrupt into a graceful shutdown request
// and the second into a hard cancel. The returned func stops watching.
func watchSignals(stderr io.Writer, shutdown *session.Shutdown, cancel context.CancelFunc, logger *slog.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-sigCh:
				if shutdown.Trigger() {
					logger.Info("received shutdown signal, finishing in-flight downloads")
					fmt.Fprintln(stderr, "\nInterrupt received, shutting down... please wait.")
					continue
				}
				logger.Warn("received second shutdown signal, cancelling")
				cancel()
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
	}
}

// runCrawl opens the optional collaborators and runs the session.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, shutdown *session.Shutdown, logger *slog.Logger) (*model.RunSummary, error) {
	client, err := session.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	defer client.CloseIdleConnections()

	if proxy := client.ProxyAddress(); proxy != "" {
		if err := client.CheckProxy(ctx); err != nil {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				err, proxy)
		}
		logger.Info("proxy connection verified", "address", proxy)
	}

	stderr := cmd.ErrOrStderr()
	opts := []session.Option{
		session.WithClient(client),
		session.WithLogger(logger),
		session.WithResumeNotice(func(records int) {
			fmt.Fprintln(stderr, "Continued from past operations; skipping already-downloaded images.")
			logger.Info("resuming", "records", records)
		}),
		session.WithProgress(func(p session.Progress) {
			fmt.Fprintf(stderr, "[%d/%d] %s: %d downloaded, %d duplicates, %d failed\n",
				p.Done, p.Total, p.Result.Seed, p.Result.Downloaded, p.Result.Duplicates, p.Result.Failed)
		}),
	}

	// History is best effort: the crawl runs without it.
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close() //nolint:errcheck // Best effort on exit
			opts = append(opts, session.WithHistory(db))
		}
	}

	fmt.Fprintf(stderr, "Crawling %d site(s) into %s...\n", len(cfg.Seeds), cfg.OutputDir)

	return session.New(cfg, shutdown, opts...).Run(ctx)
}

// outputSummary prints the run summary in the requested format. With
// --report-file a Markdown copy of the summary is written to that file too.
func outputSummary(w io.Writer, cfg *config.Config, summary *model.RunSummary) error {
	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile == "" {
		_, err := writer.WriteSummary(summary)
		return err
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	_, err = report.NewMultiWriter(writer, report.NewMarkdownWriter(f)).WriteSummary(summary)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
