// internal/onramp/client.go
package onramp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultAPIURL         = "https://api.nowpayments.io"
	paymentPath           = "/v1/payment"
	defaultRequestTimeout = 15 * time.Second
	extraIDPrefix         = "fito_presale_onramp_"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("payment service is not configured")
	ErrInvalidInput  = errors.New("invalid input provided")
)

// APIError is a non-2xx answer from the payment API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nowpayments: status %d: %s", e.Status, e.Message)
}

type Config struct {
	APIURL string
	APIKey string
	// PayoutAddress overrides the visitor's account as the recipient.
	PayoutAddress string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client creates fiat-to-crypto checkouts on NOWPayments.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	apiKey  string
	payout  *common.Address
}

type paymentRequest struct {
	PriceAmount    json.Number `json:"price_amount"`
	PriceCurrency  string      `json:"price_currency"`
	PayCurrency    string      `json:"pay_currency"`
	PayoutAddress  string      `json:"payout_address"`
	PayoutCurrency string      `json:"payout_currency"`
	PayoutExtraID  string      `json:"payout_extra_id"`
	FixedRate      bool        `json:"fixed_rate"`
}

type paymentResponse struct {
	PaymentID  json.RawMessage `json:"payment_id"`
	InvoiceID  json.RawMessage `json:"invoice_id"`
	InvoiceURL string          `json:"invoice_url"`
	Message    string          `json:"message"`
}

func NewClient(config *Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	baseURL := strings.TrimRight(config.APIURL, "/")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	c := &Client{
		client:  httpClient,
		logger:  config.Logger.Named("onramp"),
		baseURL: baseURL,
		apiKey:  config.APIKey,
	}
	if common.IsHexAddress(config.PayoutAddress) {
		addr := common.HexToAddress(config.PayoutAddress)
		c.payout = &addr
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// CreatePayment opens a checkout for amount of native currency paid out to
// account and returns its URL.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, account common.Address) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if !amount.IsPositive() {
		return "", ErrInvalidInput
	}

	payout := account
	if c.payout != nil {
		payout = *c.payout
	}
	body, err := json.Marshal(paymentRequest{
		PriceAmount:    json.Number(amount.String()),
		PriceCurrency:  "eth",
		PayCurrency:    "usd",
		PayoutAddress:  payout.Hex(),
		PayoutCurrency: "eth",
		PayoutExtraID:  extraIDPrefix + payout.Hex(),
		FixedRate:      true,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("payment request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out paymentResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = "Failed to create payment link."
		}
		c.logger.Warn("NOWPayments API error", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if out.InvoiceURL == "" {
		return "", errors.New("decode response: missing invoice_url")
	}

	c.logger.Info("💳 Payment link created", zap.String("payout", payout.Hex()), zap.String("amount", amount.String()))
	return out.InvoiceURL, nil
}
