package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prismworks/prism/domain/backend"
)

// AnthropicBackend implements backend.Backend for the Anthropic messages API.
type AnthropicBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(cfg Config) *AnthropicBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicBackend{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  httpClient(cfg),
	}
}

// Name returns the backend name.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// anthropicRequest represents the Anthropic messages API request.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the Anthropic messages API response.
type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements backend.Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	// The messages API carries the system prompt out of band.
	var systemPrompt string
	var messages []anthropicMessage
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			systemPrompt = msg.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Messages:    messages,
		System:      systemPrompt,
		Temperature: req.Temperature,
	})
	if err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return backend.CompletionResponse{}, ctx.Err()
		}
		return backend.CompletionResponse{}, fmt.Errorf("request failed: %w", backend.ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return backend.CompletionResponse{}, statusError(b.Name(), resp.StatusCode, resp.Header)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if apiResp.Error != nil {
		return backend.CompletionResponse{}, fmt.Errorf("%s: %s: %w", apiResp.Error.Type, apiResp.Error.Message, backend.ErrBadRequest)
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	return backend.CompletionResponse{
		ID:      apiResp.ID,
		Backend: b.Name(),
		Model:   apiResp.Model,
		Message: backend.Message{Role: "assistant", Content: content},
		Usage: backend.Usage{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}, nil
}

// Capabilities returns the Anthropic model catalog.
func (b *AnthropicBackend) Capabilities() []backend.ModelSpec {
	return []backend.ModelSpec{
		{
			Backend: b.Name(), Model: "claude-sonnet-4-20250514", Tier: backend.TierPremium,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 200000, Tools: true, Streaming: true, Vision: true, Code: true,
				ReasoningQuality: 0.95, SpeedScore: 0.6, CostPer1K: 0.015,
			},
			UseCases: []backend.UseCase{
				backend.UseCaseCodeGeneration, backend.UseCaseAnalysis,
				backend.UseCaseRefactoring, backend.UseCaseChat,
			},
			Priority: 90,
		},
		{
			Backend: b.Name(), Model: "claude-3-haiku-20240307", Tier: backend.TierEconomy,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 200000, Tools: true, Streaming: true, Code: true,
				ReasoningQuality: 0.7, SpeedScore: 0.95, CostPer1K: 0.0008,
			},
			UseCases: []backend.UseCase{
				backend.UseCaseChat, backend.UseCaseDocumentation, backend.UseCaseGeneral,
			},
			Priority: 60,
		},
	}
}

// Health probes the API endpoint for liveness.
func (b *AnthropicBackend) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

var _ backend.Backend = (*AnthropicBackend)(nil)
