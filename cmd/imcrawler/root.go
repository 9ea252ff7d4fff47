package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ImCrawler.
// Given a seed list file it behaves like the crawl subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imcrawler [seed_list_file]",
		Short: "Concurrent image crawler and downloader",
		Long: `ImCrawler crawls the sites listed in a seed file and downloads every image
it finds into a single output directory.

Images are deduplicated by URL and by content, recorded in metadata.csv,
and never downloaded twice: running the same command again resumes an
interrupted crawl.

Running "imcrawler <seed_list_file>" is the same as "imcrawler crawl <seed_list_file>".`,
		Version:       getVersion(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runCrawlCmd(cmd, args)
		},
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	addCrawlFlags(cmd)

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
