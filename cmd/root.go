// Package cmd defines and implements the CLI commands for the guidecrawler
// executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidecrawler",
		Short: "A scoped web crawler for library research guides",
		Long: `guidecrawler walks every page under a configured URL prefix with a
headless browser, extracts the structured content of each page, and persists
the results to a JSON document file and/or a Postgres table.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. It exits non-zero only when configuration
// loading or a persistence sink fails; individual page errors do not affect
// the exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
