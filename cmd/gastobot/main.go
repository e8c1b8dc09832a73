package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"gastobot/internal/bus"
	"gastobot/internal/channel"
	"gastobot/internal/config"
	"gastobot/internal/domain"
	"gastobot/internal/idempotency"
	"gastobot/internal/metrics"
	"gastobot/internal/pipeline"
	"gastobot/internal/privacy"
	"gastobot/internal/ratelimit"
	"gastobot/internal/report"
	"gastobot/internal/router"
	"gastobot/internal/session"
	"gastobot/internal/store"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	_ = godotenv.Load()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "gastobot",
		Short: "Gastobot: WhatsApp expense tracker",
		Long:  "Gastobot records expenses sent over WhatsApp and answers with monthly summaries.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.gastobot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gastobot " + version)
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the webhook gateway and message pipeline",
		Long:  "Starts the WhatsApp webhook, the processing pipeline, and the metrics endpoint. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = buildLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(100, logger)

	sqlStore, err := store.NewSQLiteStore(cfg.Storage.DBPath, logger)
	if err != nil {
		return fmt.Errorf("sqlite store: %w", err)
	}
	defer sqlStore.Close()

	catalog, err := report.LoadCatalog(cfg.Storage.CategoriesDir, logger)
	if err != nil {
		return fmt.Errorf("category catalog: %w", err)
	}

	reporter := report.NewReporter(sqlStore, catalog)
	exporter := report.NewCSVExporter(sqlStore, cfg.Storage.ExportDir)

	cmdRouter := router.New(sqlStore, sqlStore, reporter, exporter, catalog, logger)

	rateWindow := time.Duration(cfg.Pipeline.RateLimitWindowSeconds) * time.Second
	sessionTTL := time.Duration(cfg.Pipeline.SessionTimeoutMinutes) * time.Minute
	retention := time.Duration(cfg.Pipeline.IdempotencyRetentionHours) * time.Hour

	var (
		guard    domain.IdempotencyGuard
		limiter  domain.RateLimiter
		sessions domain.SessionStore
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		defer rdb.Close()

		guard = idempotency.NewRedisGuard(rdb, retention)
		limiter = ratelimit.NewRedisWindow(rdb, cfg.Pipeline.RateLimitCount, rateWindow)
		sessions = session.NewRedisStore(rdb, sessionTTL)
		logger.Info("shared state on redis", "addr", cfg.Redis.Addr)
	} else {
		guard = idempotency.NewMemoryGuard(retention)
		limiter = ratelimit.NewFixedWindow(cfg.Pipeline.RateLimitCount, rateWindow)
		sessions = session.NewMemoryStore(sessionTTL)
		logger.Info("shared state in process memory")
	}

	pipe := pipeline.New(
		guard,
		limiter,
		privacy.NewGate(sqlStore),
		sessions,
		cmdRouter,
		pipeline.Config{
			StoreTimeout:     time.Duration(cfg.Pipeline.StoreTimeoutSeconds) * time.Second,
			NotifyOnThrottle: cfg.Pipeline.NotifyOnThrottle,
		},
		logger,
	)

	runner := pipeline.NewRunner(pipe, messageBus, cfg.Pipeline.MaxConcurrentMessages, logger)
	go runner.Run(ctx)

	whatsapp := channel.NewWhatsApp(cfg.WhatsApp, pipe, logger)
	if err := whatsapp.Start(ctx, messageBus); err != nil {
		return fmt.Errorf("whatsapp channel: %w", err)
	}
	registerOutbound(ctx, messageBus, whatsapp.Name(), whatsapp)

	mux := http.NewServeMux()
	mux.Handle("/webhook/", whatsapp.Handler())
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, "ok")
	})
	if cfg.Metrics.Enabled {
		mux.HandleFunc("GET "+cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", addr, "webhook", cfg.WhatsApp.WebhookPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down gateway...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	messageBus.Close()

	logger.Info("shutdown complete")
	return nil
}

// registerOutbound routes a channel's replies from the bus to its sender.
func registerOutbound(ctx context.Context, b domain.MessageBus, name string, sender domain.Sender) {
	b.OnOutbound(name, func(msg domain.OutboundMessage) {
		if err := sender.Send(ctx, msg.SenderID, msg.Body); err != nil {
			logger.Error("outbound send failed", "channel", name, "sender", msg.SenderID, "err", err)
		}
	})
}

func buildLogger(cfg config.GeneralConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
