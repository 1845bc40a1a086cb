// Package cmd defines the CLI commands of the dreal-paca-scraper executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/app"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/config"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/logging"
)

// Runner is what the crawl command drives. It lets tests replace the wired app.
type Runner interface {
	Run(ctx context.Context) error
	Close() error
}

// newRunner is the application factory. It's a variable so tests can swap it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger, app.Overrides{})
}

// newRootCmd creates and configures the root command.
func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dreal-paca-scraper",
		Short: "Uploads DREAL PACA case-by-case decisions to DocumentCloud.",
		Long: `dreal-paca-scraper walks the DREAL Provence-Alpes-Côte d'Azur decision
pages for one year, normalizes every new document and uploads it to a
DocumentCloud project. Documents already recorded in the event ledger are
skipped.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "config file (YAML)")
	cmd.AddCommand(newCrawlCmd(v))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dreal-paca-scraper: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
