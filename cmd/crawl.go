package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/config"
)

// crawlFlags maps command-line flags to configuration keys.
var crawlFlags = map[string]string{
	"year":         "run.target_year",
	"project":      "run.target_project",
	"dry-run":      "run.dry_run",
	"upload-limit": "run.upload_limit",
	"run-id":       "run.run_id",
	"run-name":     "run.run_name",
}

// newCrawlCmd creates the 'crawl' subcommand, which performs one run.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the scraper once",
		Long: `Walks the site for the target year and uploads every document that is
not yet in the event ledger. The ledger is saved when the run ends, even
when it is interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, v)
		},
	}
	f := cmd.Flags()
	f.Int("year", 0, "year of the decisions to collect")
	f.String("project", "", "DocumentCloud project id receiving the uploads")
	f.Bool("dry-run", false, "walk and normalize without uploading")
	f.Int("upload-limit", 0, "stop after this many uploads (0 means no limit)")
	f.String("run-id", "", "identifier of this run")
	f.String("run-name", "", "name shown in the run report")
	for flag, key := range crawlFlags {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	return cmd
}

func runCrawl(cmd *cobra.Command, v *viper.Viper) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWith(v, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runner, err := newRunner(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize scraper: %w", err)
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.Warn("failed to close scraper", zap.Error(cerr))
		}
	}()

	if err := runner.Run(cmd.Context()); err != nil {
		if errors.Is(cmd.Context().Err(), context.Canceled) {
			logger.Warn("run interrupted", zap.Error(err))
		}
		return fmt.Errorf("run scraper: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}
