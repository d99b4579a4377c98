// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fito-presale/internal/config"
	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/faq"
	"github.com/rovshanmuradov/fito-presale/internal/metrics"
	"github.com/rovshanmuradov/fito-presale/internal/onramp"
	"github.com/rovshanmuradov/fito-presale/internal/storage"
	"github.com/rovshanmuradov/fito-presale/internal/storage/postgres"
	"github.com/rovshanmuradov/fito-presale/internal/storefront"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

const busBufferSize = 256

type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Registerer receives the collector; nil means the default registry.
	Registerer prometheus.Registerer
	// ReferralQuery is the raw ref parameter the visitor arrived with.
	ReferralQuery string
}

// App owns every long-lived dependency of the storefront.
type App struct {
	Storefront *storefront.Service
	Metrics    *metrics.Collector

	cfg      *config.Config
	logger   *zap.Logger
	bus      *events.Bus
	journal  *storage.Journal
	shutdown *ShutdownHandler
}

// New dials the chain and assembles the storefront. Nothing is started.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, logger := opts.Config, opts.Logger
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}

	a.bus = events.NewBus(logger, busBufferSize)
	a.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.bus.Shutdown(ctx)
	})

	collector, err := metrics.NewCollector(reg)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.Metrics = collector

	if len(cfg.Network.RPCURLs) == 0 {
		a.Close(context.Background())
		return nil, errors.New("network.rpc_urls is empty")
	}
	client, err := ethclient.DialContext(ctx, cfg.Network.RPCURLs[0])
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Network.RPCURLs[0], err)
	}
	a.shutdown.AddFunc("ethclient", func() error {
		client.Close()
		return nil
	})

	if err := a.openJournal(); err != nil {
		a.Close(context.Background())
		return nil, err
	}

	faqClient, err := faq.NewClient(&faq.Config{
		APIURL: cfg.FAQ.APIURL,
		Model:  cfg.FAQ.Model,
		APIKey: cfg.FAQ.APIKey,
		Logger: logger,
	})
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	sfConfig := &storefront.Config{
		Settings:            viewmodel.SettingsFromConfig(cfg),
		Contract:            cfg.Presale.Contract(),
		Target:              TargetChain(cfg.Network),
		Locator:             Locator(cfg, logger),
		Caller:              client,
		PollInterval:        cfg.Presale.PollInterval,
		FetchTimeout:        cfg.Presale.FetchTimeout,
		ConfirmInterval:     cfg.Presale.ConfirmPollInterval,
		ConfirmTimeout:      cfg.Presale.ConfirmTimeout,
		InjectionRetryDelay: cfg.Wallet.InjectionRetryDelay,
		FAQ:                 faqClient,
		Network: faq.Network{
			Name:    cfg.Network.Name,
			Symbol:  cfg.Network.Currency.Symbol,
			ChainID: cfg.Network.ChainID,
			InfoURL: cfg.Network.InfoURL,
		},
		Bus:     a.bus,
		Metrics: collector,
		Logger:  logger,
	}
	if cfg.OnRamp.APIKey != "" {
		sfConfig.OnRamp = onramp.NewClient(&onramp.Config{
			APIURL:        cfg.OnRamp.APIURL,
			APIKey:        cfg.OnRamp.APIKey,
			PayoutAddress: cfg.OnRamp.PayoutAddress,
			Logger:        logger,
		})
	}

	a.Storefront = storefront.New(sfConfig)
	if opts.ReferralQuery != "" {
		a.Storefront.SetReferralQuery(opts.ReferralQuery)
	}
	return a, nil
}

func (a *App) openJournal() error {
	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		a.logger.Debug("Transaction journal disabled")
		return nil
	}

	store, err := postgres.NewStorage(dsn, a.cfg.Log.Debug, a.logger)
	if err != nil {
		return err
	}
	a.shutdown.Add("postgres", store)

	if err := store.RunMigrations(); err != nil {
		if !errors.Is(err, postgres.ErrMigrationInProgress) {
			return err
		}
		a.logger.Warn("Skipping migrations", zap.Error(err))
	}

	a.journal = storage.NewJournal(store, storage.JournalConfig{Logger: a.logger})
	a.journal.Attach(a.bus)
	a.shutdown.Add("journal", a.journal)
	a.logger.Info("📒 Transaction journal enabled")
	return nil
}

// Start starts the storefront. Close stops it.
func (a *App) Start(ctx context.Context) error {
	if err := a.Storefront.Start(ctx); err != nil {
		return err
	}
	a.shutdown.AddFunc("storefront", func() error {
		a.Storefront.Stop()
		return nil
	})
	return nil
}

// Close releases everything in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}

// TargetChain converts the network section to wallet chain parameters.
func TargetChain(n config.NetworkConfig) wallet.ChainParams {
	return wallet.ChainParams{
		ChainID:   n.ChainID,
		ChainName: n.Name,
		NativeCurrency: wallet.Currency{
			Name:     n.Currency.Name,
			Symbol:   n.Currency.Symbol,
			Decimals: n.Currency.Decimals,
		},
		RPCURLs:           append([]string(nil), n.RPCURLs...),
		BlockExplorerURLs: append([]string(nil), n.ExplorerURLs...),
	}
}

// Locator picks the signer for the configured wallet mode.
func Locator(cfg *config.Config, logger *zap.Logger) wallet.Locator {
	switch cfg.Wallet.Mode {
	case config.WalletModeRPC:
		return wallet.RPCLocator(&wallet.RPCProviderConfig{
			URL:           cfg.Wallet.RPCURL,
			WatchInterval: cfg.Wallet.WatchInterval,
			Logger:        logger,
		})
	case config.WalletModeKey:
		networks := make(map[uint64]string, 1)
		if len(cfg.Network.RPCURLs) > 0 {
			networks[cfg.Network.ChainID] = cfg.Network.RPCURLs[0]
		}
		return wallet.KeyLocator(&wallet.KeyProviderConfig{
			PrivateKey:     cfg.Wallet.PrivateKey,
			Networks:       networks,
			InitialChainID: cfg.Network.ChainID,
			Logger:         logger,
		})
	default:
		return wallet.LocatorFunc(func(context.Context) (wallet.Provider, error) {
			return nil, wallet.ErrProviderMissing
		})
	}
}
