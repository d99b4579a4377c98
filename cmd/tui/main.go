package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rovshanmuradov/fito-presale/internal/app"
	"github.com/rovshanmuradov/fito-presale/internal/config"
	"github.com/rovshanmuradov/fito-presale/internal/logger"
	"github.com/rovshanmuradov/fito-presale/internal/ui"
)

const logBufferSize = 200

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml)")
	referral := flag.String("ref", "", "Referrer address or query string (ref=0x...)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Терминал занят TUI, поэтому логи идут только в файл и в буфер.
	level := zapcore.InfoLevel
	if cfg.Log.Debug {
		level = zapcore.DebugLevel
	}
	buf := logger.NewLogBuffer(logBufferSize)
	appLogger := logger.NewFileOnly(&logger.Config{
		LogFile:    cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxAge:     cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
		Debug:      cfg.Log.Debug,
	}, buf.Core(level))
	defer func() {
		_ = logger.Sync(appLogger)
	}()

	appLogger.Info("🚀 Starting FITO presale TUI")

	a, err := app.New(rootCtx, app.Options{
		Config:        cfg,
		Logger:        appLogger,
		ReferralQuery: *referral,
	})
	if err != nil {
		log.Fatalf("Failed to assemble storefront: %v", err)
	}
	if err := a.Start(rootCtx); err != nil {
		_ = a.Close(context.Background())
		log.Fatalf("Failed to start storefront: %v", err)
	}

	var (
		mu      sync.Mutex
		cancels []func()
	)
	handler := ui.NewRecoveryHandler(appLogger, func() (tea.Model, []tea.ProgramOption) {
		views, cancel := a.Storefront.Watch()
		mu.Lock()
		cancels = append(cancels, cancel)
		mu.Unlock()

		model := ui.NewAppModel(ui.Options{
			Context: rootCtx,
			Actions: a.Storefront,
			Views:   views,
			Logs:    buf,
		})
		return ui.NewSafeModel(model, appLogger), []tea.ProgramOption{tea.WithAltScreen()}
	})

	go func() {
		<-rootCtx.Done()
		handler.Stop()
	}()

	if err := handler.RunWithRecovery(); err != nil {
		appLogger.Error("💥 TUI application failed", zap.Error(err))
	}

	mu.Lock()
	for _, cancel := range cancels {
		cancel()
	}
	mu.Unlock()

	appLogger.Info("🛑 Shutting down TUI application",
		zap.Int("restarts", handler.RestartCount()))
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		appLogger.Error("Shutdown finished with errors", zap.Error(err))
	}
}
