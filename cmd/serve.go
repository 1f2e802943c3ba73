package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/analyzer"
	"github.com/voxsurf/voxsurf/internal/arbiter"
	"github.com/voxsurf/voxsurf/internal/config"
	"github.com/voxsurf/voxsurf/internal/crawler"
	"github.com/voxsurf/voxsurf/internal/fetcher"
	"github.com/voxsurf/voxsurf/internal/history"
	"github.com/voxsurf/voxsurf/internal/menu"
	"github.com/voxsurf/voxsurf/internal/observability"
	"github.com/voxsurf/voxsurf/internal/router"
	"github.com/voxsurf/voxsurf/internal/search"
	"github.com/voxsurf/voxsurf/internal/webhook"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the fulfillment webhook server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize configuration: %w", err)
			}

			// -- Storage --
			if cfg.Database.URL == "" {
				return fmt.Errorf("database.url is required (set VOXSURF_DATABASE_URL)")
			}
			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to create database pool: %w", err)
			}
			defer pool.Close()

			store, err := history.New(ctx, pool, cfg.Browse.HistoryFreshness, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize history store: %w", err)
			}
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure database schema: %w", err)
			}

			// -- Collaborators --
			pages := fetcher.New(cfg.Fetcher, logger)

			var textAnalyzer schemas.TextAnalyzer
			if cfg.Analyzer.APIKey == "" {
				logger.Warn("No analyzer API key configured, page classification is disabled")
				textAnalyzer = analyzer.Disabled{}
			} else {
				textAnalyzer, err = analyzer.New(cfg.Analyzer, logger)
				if err != nil {
					return fmt.Errorf("failed to initialize analyzer: %w", err)
				}
			}

			searcher := search.New(cfg.Search, logger)
			siteCrawler := crawler.New(cfg.Crawler, pages, store, logger)
			menus := menu.NewBuilder(store, logger)

			// -- Turn handling pipeline --
			handler := router.New(pages, store, textAnalyzer, siteCrawler, searcher, menus, cfg.Browse, logger)
			arb := arbiter.New(handler, cfg.Server.TurnDeadline, logger)
			server := webhook.NewServer(arb, cfg.Server, logger)

			logger.Info("Webhook server starting",
				zap.String("addr", cfg.Server.Addr),
				zap.Duration("turn_deadline", cfg.Server.TurnDeadline),
			)

			// Blocks until the context is cancelled or the listener fails.
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("webhook server failed: %w", err)
			}

			logger.Info("Webhook server stopped cleanly")
			return nil
		},
	}

	serveCmd.Flags().String("addr", "", "listen address for the webhook server (overrides config)")

	return serveCmd
}
