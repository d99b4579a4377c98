// ====================================
// File: cmd/presale/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fito-presale/internal/app"
	"github.com/rovshanmuradov/fito-presale/internal/config"
	"github.com/rovshanmuradov/fito-presale/internal/logger"
	"github.com/rovshanmuradov/fito-presale/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(loggerConfig(cfg.Log))
	defer func() {
		_ = logger.Sync(appLogger)
	}()

	appLogger.Info("🚀 Starting FITO presale storefront",
		zap.String("listen", cfg.Server.Listen),
		zap.Uint64("chain_id", cfg.Network.ChainID))

	a, err := app.New(ctx, app.Options{Config: cfg, Logger: appLogger})
	if err != nil {
		appLogger.Fatal("Failed to assemble storefront", zap.Error(err))
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close(context.Background())
		appLogger.Fatal("Failed to start storefront", zap.Error(err))
	}

	if cfg.Wallet.Mode == config.WalletModeKey && cfg.Server.AuthToken == "" {
		appLogger.Warn("⚠️ Signing with a local key and no server.auth_token set",
			zap.String("listen", cfg.Server.Listen))
	}

	srv := server.New(a.Storefront, &server.Config{
		Listen:             cfg.Server.Listen,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		AuthToken:          cfg.Server.AuthToken,
		Gatherer:           prometheus.DefaultGatherer,
		Metrics:            a.Metrics,
		Logger:             appLogger,
	})
	if err := srv.Run(ctx); err != nil {
		appLogger.Error("💥 HTTP server failed", zap.Error(err))
	}

	appLogger.Info("🛑 Shutting down")
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		appLogger.Error("Shutdown finished with errors", zap.Error(err))
	}
}

func loggerConfig(c config.LogConfig) *logger.Config {
	return &logger.Config{
		LogFile:    c.File,
		MaxSize:    c.MaxSizeMB,
		MaxAge:     c.MaxAgeDays,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		Debug:      c.Debug,
	}
}
