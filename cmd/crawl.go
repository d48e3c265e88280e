package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guidecrawler/internal/app"
	"guidecrawler/internal/config"
	"guidecrawler/internal/logging"
)

// newCrawlCmd creates the 'crawl' subcommand. The configuration file may be
// given either as a positional argument or via --config.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [config-file]",
		Short: "Run one crawl of the configured scope",
		Long: `Crawls every in-scope page reachable from the start URL, depth-first,
and writes one record per page to the enabled sinks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting crawl",
		zap.String("start_url", cfg.Crawler.StartURL),
		zap.String("scope_prefix", cfg.Crawler.ScopePrefix),
		zap.Int("max_depth", cfg.Crawler.MaxDepth),
		zap.Int("max_pages", cfg.Crawler.MaxPages),
	)

	if err := app.Run(cmd.Context(), cfg, logger); err != nil {
		logger.Error("Crawl failed", zap.Error(err))
		return err
	}
	return nil
}
