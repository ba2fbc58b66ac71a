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

// OpenRouterBackend implements backend.Backend for the OpenRouter
// OpenAI-compatible chat completions API.
type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenRouterBackend creates an OpenRouter backend.
func NewOpenRouterBackend(cfg Config) *OpenRouterBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api"
	}
	return &OpenRouterBackend{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  httpClient(cfg),
	}
}

// Name returns the backend name.
func (b *OpenRouterBackend) Name() string {
	return "openrouter"
}

// chatRequest represents the OpenAI-compatible chat completions request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the OpenAI-compatible chat completions response.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete implements backend.Backend.
func (b *OpenRouterBackend) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	messages := make([]chatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

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

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if apiResp.Error != nil {
		return backend.CompletionResponse{}, fmt.Errorf("%s: %s: %w", apiResp.Error.Type, apiResp.Error.Message, backend.ErrBadRequest)
	}
	if len(apiResp.Choices) == 0 {
		return backend.CompletionResponse{}, fmt.Errorf("empty choices in response: %w", backend.ErrUnavailable)
	}

	choice := apiResp.Choices[0]
	return backend.CompletionResponse{
		ID:      apiResp.ID,
		Backend: b.Name(),
		Model:   apiResp.Model,
		Message: backend.Message{Role: choice.Message.Role, Content: choice.Message.Content},
		Usage: backend.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
	}, nil
}

// Capabilities returns the OpenRouter model catalog.
func (b *OpenRouterBackend) Capabilities() []backend.ModelSpec {
	return []backend.ModelSpec{
		{
			Backend: b.Name(), Model: "openai/gpt-4o", Tier: backend.TierPremium,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 128000, Tools: true, Streaming: true, Vision: true, Code: true,
				ReasoningQuality: 0.9, SpeedScore: 0.7, CostPer1K: 0.01,
			},
			UseCases: []backend.UseCase{
				backend.UseCaseCodeGeneration, backend.UseCaseAnalysis, backend.UseCaseChat,
			},
			Priority: 80,
		},
		{
			Backend: b.Name(), Model: "openai/gpt-4o-mini", Tier: backend.TierStandard,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 128000, Tools: true, Streaming: true, Code: true,
				ReasoningQuality: 0.75, SpeedScore: 0.9, CostPer1K: 0.0006,
			},
			UseCases: []backend.UseCase{
				backend.UseCaseChat, backend.UseCaseDocumentation, backend.UseCaseGeneral,
			},
			Priority: 65,
		},
		{
			Backend: b.Name(), Model: "meta-llama/llama-3.1-8b-instruct", Tier: backend.TierEconomy,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 131072, Streaming: true,
				ReasoningQuality: 0.55, SpeedScore: 0.95, CostPer1K: 0.0001,
			},
			UseCases: []backend.UseCase{backend.UseCaseChat, backend.UseCaseGeneral},
			Priority: 40,
		},
	}
}

// Health probes the API endpoint for liveness.
func (b *OpenRouterBackend) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

var _ backend.Backend = (*OpenRouterBackend)(nil)
