package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imcrawler/imcrawler/internal/config"
	"github.com/imcrawler/imcrawler/internal/database"
	"github.com/imcrawler/imcrawler/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past crawl runs",
		Long: `History lists the crawl runs recorded in the history database, newest first.

With --run it lists the images kept by one run instead, including the image
format, dimensions and camera model found while downloading.

Examples:
  # List all runs
  imcrawler history

  # List runs that wrote into one directory
  imcrawler history --output example.com

  # List the images of run 3 as Markdown
  imcrawler history --run 3 -m`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Only list runs that wrote into this output directory")
	cmd.Flags().Int64("run", 0,
		"List the images of this run ID")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outputDir != "" {
		if outputDir, err = filepath.Abs(outputDir); err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
	}

	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No crawl history found.")
			return nil
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only use

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(cmd.OutOrStdout())
	default:
		writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(getVerboseFlag(cmd)))
	}

	ctx := cmd.Context()

	if runID != 0 {
		images, err := db.ListImages(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to list images of run %d: %w", runID, err)
		}
		_, err = writer.WriteImages(images)
		return err
	}

	runs, err := db.ListRuns(ctx, outputDir)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	_, err = writer.WriteHistory(runs)
	return err
}
