package faq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fitochain = Network{Name: "Fitochain Mainnet", Symbol: "FITO", ChainID: 7777, InfoURL: "https://fitochain.com"}

func newTestClient(t *testing.T, url, key string) *Client {
	c, err := NewClient(&Config{APIURL: url, APIKey: key, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return c
}

func geminiReply(text string) []byte {
	resp := map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]string{"text": text}},
				},
			},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(geminiReply(` {"faqs":[{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}]} `))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL, "key").Generate(context.Background(), fitochain)
	assert.False(t, res.Fallback)
	assert.Equal(t, []Item{{"Q1", "A1"}, {"Q2", "A2"}}, res.Items)

	require.Len(t, got.Contents, 1)
	text := got.Contents[0].Parts[0].Text
	assert.Contains(t, text, "Fitochain Mainnet (FITO)")
	assert.Contains(t, text, "Chain ID: 7777")
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.Equal(t, "ARRAY", got.GenerationConfig.ResponseSchema.Properties["faqs"].Type)
}

func TestGenerateMissingKey(t *testing.T) {
	res := newTestClient(t, "http://127.0.0.1:0", "").Generate(context.Background(), fitochain)
	assert.True(t, res.Fallback)
	require.Len(t, res.Items, 4)
	assert.Equal(t, "What is Fitochain?", res.Items[0].Question)
	assert.True(t, strings.HasSuffix(res.Items[0].Answer, "The API key is missing, so this is mock data."))
	assert.NotContains(t, res.Items[1].Answer, "mock data")
}

func TestGenerateFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"no candidates", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}},
		{"malformed text", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(geminiReply("here are some faqs"))
		}},
		{"missing faqs field", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(geminiReply(`{"questions":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			res := newTestClient(t, srv.URL, "key").Generate(context.Background(), fitochain)
			assert.True(t, res.Fallback)
			assert.Contains(t, res.Items[0].Answer, "There was an error fetching dynamic content from the AI.")
		})
	}
}

func TestParseFallbackRejectsEmpty(t *testing.T) {
	_, err := parseFallback([]byte("items: []"))
	assert.Error(t, err)
	_, err = parseFallback([]byte("items: [:"))
	assert.Error(t, err)
}
