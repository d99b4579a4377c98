// internal/faq/client.go
package faq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIURL         = "https://generativelanguage.googleapis.com"
	defaultModel          = "gemini-2.5-flash"
	defaultRequestTimeout = 20 * time.Second
)

// Item is one question and answer pair.
type Item struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Result is a generated list, or the canned list when Fallback is set.
type Result struct {
	Items    []Item `json:"items"`
	Fallback bool   `json:"fallback"`
}

// Network is the chain metadata the questions are generated about.
type Network struct {
	Name    string
	Symbol  string
	ChainID uint64
	InfoURL string
}

type Config struct {
	APIURL     string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client generates presale FAQs with Gemini. It never fails: every error
// turns into the canned list.
type Client struct {
	client   *http.Client
	logger   *zap.Logger
	baseURL  string
	model    string
	apiKey   string
	fallback *fallbackFile
}

func NewClient(config *Config) (*Client, error) {
	fb, err := parseFallback(fallbackYAML)
	if err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	baseURL := strings.TrimRight(config.APIURL, "/")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:   httpClient,
		logger:   config.Logger.Named("faq"),
		baseURL:  baseURL,
		model:    model,
		apiKey:   config.APIKey,
		fallback: fb,
	}, nil
}

func (c *Client) Generate(ctx context.Context, network Network) Result {
	if c.apiKey == "" {
		c.logger.Warn("Gemini API key not set, serving canned FAQ")
		return Result{Items: c.fallback.items(reasonMissingKey), Fallback: true}
	}
	items, err := c.generate(ctx, network)
	if err != nil {
		c.logger.Warn("FAQ generation failed, serving canned FAQ", zap.Error(err))
		return Result{Items: c.fallback.items(reasonError), Fallback: true}
	}
	c.logger.Debug("FAQ generated", zap.Int("items", len(items)))
	return Result{Items: items}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
	Items       *schema           `json:"items,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var faqSchema = schema{
	Type: "OBJECT",
	Properties: map[string]schema{
		"faqs": {
			Type:        "ARRAY",
			Description: "A list of frequently asked questions and their answers.",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]schema{
					"question": {Type: "STRING", Description: "The frequently asked question."},
					"answer":   {Type: "STRING", Description: "The answer to the question."},
				},
			},
		},
	},
}

func prompt(n Network) string {
	return fmt.Sprintf(`You are a helpful assistant for a cryptocurrency project called Fitochain.
Your task is to generate a list of 5 frequently asked questions (FAQs) for their native coin presale.
The project's network details are as follows:
- Name: %s (%s)
- Chain ID: %d
- Info URL: %s
- Description: A blockchain for the decentralized fitness economy.

Generate FAQs that are relevant to a potential investor in a presale. Cover topics like the project's purpose, how to buy, what wallets are supported, and the token's utility.
Keep the answers concise and easy to understand.`, n.Name, n.Symbol, n.ChainID, n.InfoURL)
}

func (c *Client) generate(ctx context.Context, n Network) ([]Item, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt(n)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   faqSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(raw))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response")
	}

	var payload struct {
		FAQs []Item `json:"faqs"`
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("decode faqs: %w", err)
	}
	if payload.FAQs == nil {
		return nil, errors.New("invalid format from model response")
	}
	return payload.FAQs, nil
}
