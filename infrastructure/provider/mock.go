package provider

import (
	"context"
	"sync"

	"github.com/prismworks/prism/domain/backend"
)

// MockBackend is a configurable in-process backend for testing.
type MockBackend struct {
	mu sync.Mutex

	name     string
	specs    []backend.ModelSpec
	response backend.CompletionResponse
	err      error
	healthy  bool

	calls int
}

// NewMockBackend creates a healthy mock backend with the given catalog.
func NewMockBackend(name string, specs ...backend.ModelSpec) *MockBackend {
	if len(specs) == 0 {
		specs = []backend.ModelSpec{{
			Backend:  name,
			Model:    name + "-default",
			Tier:     backend.TierStandard,
			UseCases: []backend.UseCase{backend.UseCaseGeneral},
			Priority: 10,
			Capabilities: backend.Capabilities{
				MaxContextTokens: 8192,
				CostPer1K:        0.01,
				ReasoningQuality: 0.5,
				SpeedScore:       0.9,
			},
		}}
	}
	return &MockBackend{
		name:    name,
		specs:   specs,
		healthy: true,
		response: backend.CompletionResponse{
			Backend: name,
			Message: backend.Message{Role: "assistant", Content: "mock response"},
		},
	}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return m.name
}

// Complete returns the configured response or error.
func (m *MockBackend) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return backend.CompletionResponse{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return backend.CompletionResponse{}, m.err
	}
	resp := m.response
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// Capabilities returns the configured catalog.
func (m *MockBackend) Capabilities() []backend.ModelSpec {
	return m.specs
}

// Health returns the configured health state.
func (m *MockBackend) Health(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// SetResponse configures the response returned by Complete.
func (m *MockBackend) SetResponse(resp backend.CompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
	m.err = nil
}

// SetError makes Complete return err.
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetHealthy sets the health probe result.
func (m *MockBackend) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

// Calls returns the number of Complete invocations.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ backend.Backend = (*MockBackend)(nil)
