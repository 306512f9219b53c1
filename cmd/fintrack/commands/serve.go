package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const cacheCleanupInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. When AMQP_URL is set, transaction changes are published
and consumed so every instance drops stale dashboard summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, nil)

	ctx, stop := cli.GracefulShutdown(parent, logger)
	defer stop()

	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	var summaryCache cache.Cache[core.DashboardSummary]
	var lru *cache.LRUCache[core.DashboardSummary]
	if cfg.CacheEnabled() {
		lru = cache.NewLRUCache[core.DashboardSummary](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
		summaryCache = lru
	}
	dashboard := services.NewDashboardService(be.Store, summaryCache, logger)

	var publisher services.Publisher
	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			// The API stays useful without change events; caches just expire by TTL.
			logger.Warn("AMQP unavailable, continuing without change events", log.FieldError, err)
		} else {
			publisher = broker
			defer broker.Close()
		}
	}
	transactions := services.NewTransactionService(be.Store, publisher, dashboard, logger)

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: transactions,
		Dashboard:    dashboard,
		Store:        be.Store,
		Verifier:     auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience),
		Limiter:      limiter,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"port", cfg.Port,
			"backend", cfg.DatabaseDriver,
			"amqp_enabled", broker != nil,
			"cache_enabled", lru != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if broker != nil && lru != nil {
		g.Go(func() error {
			return broker.Consume(gctx, dashboard.HandleChange)
		})
	}

	if lru != nil {
		janitor := cache.NewManager(logger.WithComponent(log.ComponentCache))
		janitor.Register(lru)
		g.Go(func() error {
			return janitor.Run(gctx, cacheCleanupInterval)
		})
	}

	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
