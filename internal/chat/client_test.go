package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/config"
)

func TestCompletePostsRequestAndDecodesResponse(t *testing.T) {
	t.Parallel()
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{
			Content: "question",
			Usage:   Usage{PromptTokens: 12, CompletionTokens: 1},
			CostUSD: 0.0001,
		})
	}))
	defer srv.Close()

	c := NewClient(nil, config.AIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	})
	resp, err := c.Complete(context.Background(), Request{
		Feature:  FeatureIntent,
		Messages: []Message{{Role: "user", Content: "how do I pay?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "question", resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, "gpt-4o-mini", got.Model, "default model is applied")
	assert.Equal(t, FeatureIntent, got.Feature)
}

func TestCompleteNon200IsAnError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(nil, config.AIConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
