// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Network NetworkConfig `mapstructure:"network"`
	Presale PresaleConfig `mapstructure:"presale"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Server  ServerConfig  `mapstructure:"server"`
	OnRamp  OnRampConfig  `mapstructure:"onramp"`
	FAQ     FAQConfig     `mapstructure:"faq"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// NetworkConfig describes the target chain. The same values are handed to
// the wallet when it has to add the chain.
type NetworkConfig struct {
	ChainID      uint64         `mapstructure:"chain_id"`
	Name         string         `mapstructure:"name"`
	ShortName    string         `mapstructure:"short_name"`
	Currency     CurrencyConfig `mapstructure:"currency"`
	RPCURLs      []string       `mapstructure:"rpc_urls"`
	ExplorerURLs []string       `mapstructure:"explorer_urls"`
	InfoURL      string         `mapstructure:"info_url"`
}

type CurrencyConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

type PresaleConfig struct {
	ContractAddress       string        `mapstructure:"contract_address"`
	AdminAddress          string        `mapstructure:"admin_address"`
	StartTime             string        `mapstructure:"start_time"`
	HardCap               string        `mapstructure:"hard_cap"`
	Price                 string        `mapstructure:"price"`
	Tiers                 []TierConfig  `mapstructure:"tiers"`
	ReferralRewardPercent float64       `mapstructure:"referral_reward_percent"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	FetchTimeout          time.Duration `mapstructure:"fetch_timeout"`
	ConfirmTimeout        time.Duration `mapstructure:"confirm_timeout"`
	ConfirmPollInterval   time.Duration `mapstructure:"confirm_poll_interval"`
	SiteURL               string        `mapstructure:"site_url"`
}

type TierConfig struct {
	Name       string  `mapstructure:"name"`
	Percentage float64 `mapstructure:"percentage"`
}

// WalletConfig selects the signer. Mode "rpc" talks to an external wallet
// endpoint, "key" signs locally, "none" runs read-only.
type WalletConfig struct {
	Mode                string        `mapstructure:"mode"`
	RPCURL              string        `mapstructure:"rpc_url"`
	PrivateKey          string        `mapstructure:"private_key"`
	WatchInterval       time.Duration `mapstructure:"watch_interval"`
	InjectionRetryDelay time.Duration `mapstructure:"injection_retry_delay"`
}

type ServerConfig struct {
	Listen             string `mapstructure:"listen"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	AuthToken          string `mapstructure:"auth_token"`
}

type OnRampConfig struct {
	APIURL        string `mapstructure:"api_url"`
	APIKey        string `mapstructure:"api_key"`
	PayoutAddress string `mapstructure:"payout_address"`
}

type FAQConfig struct {
	APIURL string `mapstructure:"api_url"`
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

type StorageConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

const (
	WalletModeRPC  = "rpc"
	WalletModeKey  = "key"
	WalletModeNone = "none"

	DefaultChainID             = 7777
	DefaultPollInterval        = 15 * time.Second
	DefaultFetchTimeout        = 10 * time.Second
	DefaultConfirmTimeout      = 2 * time.Minute
	DefaultConfirmPollInterval = time.Second
	DefaultWatchInterval       = 2 * time.Second
	DefaultInjectionRetryDelay = time.Second
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"network.chain_id":          DefaultChainID,
		"network.name":              "Fitochain Mainnet",
		"network.short_name":        "fitochain",
		"network.currency.name":     "Fito",
		"network.currency.symbol":   "FITO",
		"network.currency.decimals": 18,
		"network.rpc_urls":          []string{"https://endpoint.fitochain.com"},
		"network.explorer_urls":     []string{"https://explorer.fitochain.com"},
		"network.info_url":          "https://fitochain.com",

		"presale.contract_address": "0x0000000000000000000000000000000000000000",
		"presale.admin_address":    "0xacF2bBEF2aEA2942cF740D8115d107107Da7106A",
		"presale.start_time":       "2025-08-31T00:00:00Z",
		"presale.hard_cap":         "100",
		"presale.price":            "0.0001",
		"presale.tiers": []map[string]interface{}{
			{"name": "Tier 1 (Whales)", "percentage": 35},
			{"name": "Tier 2 (Investors)", "percentage": 25},
			{"name": "Tier 3 (General Public)", "percentage": 20},
		},
		"presale.referral_reward_percent": 0.5,
		"presale.poll_interval":           DefaultPollInterval,
		"presale.fetch_timeout":           DefaultFetchTimeout,
		"presale.confirm_timeout":         DefaultConfirmTimeout,
		"presale.confirm_poll_interval":   DefaultConfirmPollInterval,
		"presale.site_url":                "http://localhost:8080/",

		"wallet.mode":                  WalletModeRPC,
		"wallet.rpc_url":               "http://127.0.0.1:1248",
		"wallet.private_key":           "",
		"wallet.watch_interval":        DefaultWatchInterval,
		"wallet.injection_retry_delay": DefaultInjectionRetryDelay,

		"server.listen":                "127.0.0.1:8080",
		"server.rate_limit_per_minute": 30,
		"server.auth_token":            "",

		"onramp.api_url":        "https://api.nowpayments.io",
		"onramp.api_key":        "",
		"onramp.payout_address": "",

		"faq.api_url": "https://generativelanguage.googleapis.com",
		"faq.model":   "gemini-2.5-flash",
		"faq.api_key": "",

		"storage.postgres_dsn": "",

		"log.file":         "logs/presale.log",
		"log.max_size_mb":  100,
		"log.max_backups":  3,
		"log.max_age_days": 7,
		"log.compress":     true,
		"log.debug":        false,
	}
}

// LoadConfig reads the optional config file at path, applies PRESALE_*
// environment overrides (after loading a .env file when present) and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("PRESALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Comma separated env lists arrive as a single element.
	cfg.Network.RPCURLs = splitList(cfg.Network.RPCURLs)
	cfg.Network.ExplorerURLs = splitList(cfg.Network.ExplorerURLs)

	return &cfg, validateConfig(&cfg)
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Network.ChainID == 0 {
		return errors.New("network.chain_id must be positive")
	}
	if len(cfg.Network.RPCURLs) == 0 {
		return errors.New("network.rpc_urls is empty")
	}
	for _, rpcURL := range cfg.Network.RPCURLs {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid network rpc url %q: %w", rpcURL, err)
		}
	}
	if cfg.Network.Currency.Symbol == "" {
		return errors.New("network.currency.symbol is empty")
	}
	if err := validatePresale(&cfg.Presale); err != nil {
		return err
	}
	switch cfg.Wallet.Mode {
	case WalletModeRPC:
		if err := validateURLWithCache(cfg.Wallet.RPCURL, "http"); err != nil {
			return fmt.Errorf("invalid wallet.rpc_url: %w", err)
		}
	case WalletModeKey:
		if cfg.Wallet.PrivateKey == "" {
			return errors.New("wallet.private_key is required in key mode")
		}
	case WalletModeNone:
	default:
		return fmt.Errorf("unknown wallet.mode %q", cfg.Wallet.Mode)
	}
	if cfg.Wallet.WatchInterval <= 0 || cfg.Wallet.InjectionRetryDelay <= 0 {
		return errors.New("invalid wallet intervals")
	}
	if cfg.OnRamp.PayoutAddress != "" && !common.IsHexAddress(cfg.OnRamp.PayoutAddress) {
		return errors.New("invalid onramp.payout_address")
	}
	if cfg.Server.RateLimitPerMinute <= 0 {
		return errors.New("invalid server.rate_limit_per_minute")
	}
	return nil
}

// validatePresale leaves a zero contract address alone; the sale reader
// reports it as a configuration error of its own.
func validatePresale(p *PresaleConfig) error {
	if p.ContractAddress != "" && !common.IsHexAddress(p.ContractAddress) {
		return errors.New("invalid presale.contract_address")
	}
	if !common.IsHexAddress(p.AdminAddress) {
		return errors.New("invalid presale.admin_address")
	}
	if _, err := time.Parse(time.RFC3339, p.StartTime); err != nil {
		return fmt.Errorf("invalid presale.start_time: %w", err)
	}
	for name, raw := range map[string]string{"hard_cap": p.HardCap, "price": p.Price} {
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("invalid presale.%s %q", name, raw)
		}
	}
	var total float64
	for _, tier := range p.Tiers {
		if tier.Percentage < 0 || tier.Percentage > 100 {
			return fmt.Errorf("invalid percentage for tier %q", tier.Name)
		}
		total += tier.Percentage
	}
	if total > 100 {
		return errors.New("presale tiers exceed 100 percent")
	}
	if p.PollInterval < time.Second {
		return errors.New("presale.poll_interval must be at least 1s")
	}
	if p.FetchTimeout <= 0 || p.ConfirmTimeout <= 0 || p.ConfirmPollInterval <= 0 {
		return errors.New("invalid presale timeouts")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// StartAt returns the parsed sale start. validateConfig guarantees it parses.
func (p PresaleConfig) StartAt() time.Time {
	t, _ := time.Parse(time.RFC3339, p.StartTime)
	return t.UTC()
}

func (p PresaleConfig) HardCapAmount() decimal.Decimal {
	return decimal.RequireFromString(p.HardCap)
}

func (p PresaleConfig) PriceAmount() decimal.Decimal {
	return decimal.RequireFromString(p.Price)
}

func (p PresaleConfig) Contract() common.Address {
	return common.HexToAddress(p.ContractAddress)
}

func (p PresaleConfig) Admin() common.Address {
	return common.HexToAddress(p.AdminAddress)
}
