// Package chat talks to the LLM completion service used for message
// enrichment.
package chat

import "context"

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. Feature and Channel tag the call for
// accounting on the completion service side.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Feature  string    `json:"feature,omitempty"`
	Channel  string    `json:"channel,omitempty"`
}

// Usage reports token consumption of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a completion result.
type Response struct {
	Content string  `json:"content"`
	Usage   Usage   `json:"usage"`
	CostUSD float64 `json:"cost_usd"`
}

// Completer produces chat completions. Implementations must honor ctx
// cancellation.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

const (
	// FeatureIntent tags intent-classification calls.
	FeatureIntent = "intent"
	// FeatureSuggest tags reply-suggestion calls.
	FeatureSuggest = "suggest"
)
