package provider

import (
	"context"
	"sync"

	"github.com/prismworks/prism/domain/backend"
)

// ScriptStep is one scripted call outcome.
type ScriptStep struct {
	// Response is returned when Err is nil.
	Response backend.CompletionResponse
	// Err is the error to return for this call.
	Err error
}

// ScriptedBackend returns a predefined sequence of outcomes, for
// deterministic retry and fallback testing. When the script is exhausted it
// keeps returning the last step's outcome.
type ScriptedBackend struct {
	mu    sync.Mutex
	name  string
	specs []backend.ModelSpec
	steps []ScriptStep
	index int
	calls int
}

// NewScriptedBackend creates a scripted backend.
func NewScriptedBackend(name string, specs []backend.ModelSpec, steps ...ScriptStep) *ScriptedBackend {
	return &ScriptedBackend{
		name:  name,
		specs: specs,
		steps: steps,
	}
}

// Name returns the backend name.
func (s *ScriptedBackend) Name() string {
	return s.name
}

// Complete returns the next scripted outcome.
func (s *ScriptedBackend) Complete(ctx context.Context, _ backend.CompletionRequest) (backend.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return backend.CompletionResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.steps) == 0 {
		return backend.CompletionResponse{}, backend.ErrUnavailable
	}
	step := s.steps[s.index]
	if s.index < len(s.steps)-1 {
		s.index++
	}
	if step.Err != nil {
		return backend.CompletionResponse{}, step.Err
	}
	return step.Response, nil
}

// Capabilities returns the configured catalog.
func (s *ScriptedBackend) Capabilities() []backend.ModelSpec {
	return s.specs
}

// Health reports whether the next scripted outcome is a success.
func (s *ScriptedBackend) Health(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) > 0 && s.steps[s.index].Err == nil
}

// Calls returns the number of Complete invocations.
func (s *ScriptedBackend) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ backend.Backend = (*ScriptedBackend)(nil)
