// Package backend defines the remote model backend boundary: the Backend
// interface, the ModelSpec capability catalog, completion request/response
// types, and the error taxonomy the router's retry policy is built on.
package backend

import (
	"context"
	"encoding/json"
)

// Backend is a remote model provider (Anthropic, OpenRouter, a local mock).
type Backend interface {
	// Name returns the backend identifier used for breaker and metrics keys.
	Name() string

	// Complete sends a completion request and returns the response.
	// Failures are reported through the package error taxonomy: a
	// *RateLimitedError or ErrUnavailable is transient and retryable,
	// ErrBadRequest is terminal.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Capabilities returns the backend's static model catalog.
	Capabilities() []ModelSpec

	// Health probes backend liveness.
	Health(ctx context.Context) bool
}

// CompletionRequest represents a routed completion request.
type CompletionRequest struct {
	// Model pins a specific model by name. Empty means automatic selection.
	Model string `json:"model,omitempty"`
	// Tier narrows selection to a cost/quality bucket.
	Tier Tier `json:"tier,omitempty"`
	// UseCase declares the kind of work, for cache partitioning and
	// selection scoring.
	UseCase UseCase `json:"use_case,omitempty"`

	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`

	// NeedsTools and Stream feed the selector's capability bonuses.
	NeedsTools bool `json:"needs_tools,omitempty"`
	Stream     bool `json:"stream,omitempty"`

	// NoCache bypasses the response cache for this request.
	NoCache bool `json:"-"`
}

// Message is a single chat message.
type Message struct {
	Role       string          `json:"role"` // system, user, assistant, tool
	Content    string          `json:"content,omitempty"`
	RawContent json.RawMessage `json:"-"`
}

// CompletionResponse represents a completion result.
type CompletionResponse struct {
	ID      string  `json:"id"`
	Backend string  `json:"backend"`
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`

	// Cached marks responses served from the cache rather than a backend.
	Cached bool `json:"cached,omitempty"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
