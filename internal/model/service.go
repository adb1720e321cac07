// Package model manages the live inference model: its lifecycle state
// machine and the atomic swap of a retrained adapter into the serving path.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Status is the lifecycle state of the model service.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// ErrNotReady is returned by Generate while no model is ready to serve.
// Clients may retry after the load in progress completes.
var ErrNotReady = errors.New("model is not ready")

// LoadError reports a failed base or adapter load. The service falls back
// to the last good model when one exists.
type LoadError struct {
	Adapter string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Adapter == "" {
		return fmt.Sprintf("loading base model: %v", e.Err)
	}
	return fmt.Sprintf("loading adapter %s: %v", e.Adapter, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// State is a point-in-time snapshot of the service, safe to read
// concurrently with generation.
type State struct {
	Status        Status `json:"status"`
	BaseModel     string `json:"base_model"`
	ActiveAdapter string `json:"current_adapter,omitempty"`
	Device        string `json:"device"`
}

// Handle is a loaded, generation-capable model.
type Handle interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Provider loads a base model (and optionally an adapter) by identifier.
type Provider interface {
	Load(ctx context.Context, baseModel, adapterPath string) (Handle, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, baseModel, adapterPath string) (Handle, error)

func (f ProviderFunc) Load(ctx context.Context, baseModel, adapterPath string) (Handle, error) {
	return f(ctx, baseModel, adapterPath)
}

// Service holds the currently active model. Load calls are serialized;
// Generate and State read a consistent snapshot and never observe a
// half-swapped model.
type Service struct {
	provider  Provider
	baseModel string
	device    string

	loadMu sync.Mutex // serializes state transitions

	mu      sync.RWMutex // guards the fields below
	status  Status
	adapter string
	handle  Handle
}

// NewService creates a Service in the unloaded state.
func NewService(provider Provider, baseModel, device string) *Service {
	return &Service{
		provider:  provider,
		baseModel: baseModel,
		device:    device,
		status:    StatusUnloaded,
	}
}

// Load synchronously loads the base model plus the adapter at adapterPath
// (empty for base only) and swaps it in. The swap is atomic: callers of
// Generate see either the previous model or the new one in full. If the
// load fails and a working model exists, the service keeps serving it.
func (s *Service) Load(ctx context.Context, adapterPath string) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	prevHandle := s.handle
	s.status = StatusLoading
	s.mu.Unlock()

	// Loading runs outside the snapshot lock; reads during this window
	// observe StatusLoading and fail fast.
	handle, err := s.provider.Load(ctx, s.baseModel, adapterPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if prevHandle != nil {
			// Keep the last good model; adapter and handle are untouched.
			s.status = StatusReady
		} else {
			s.status = StatusFailed
		}
		return &LoadError{Adapter: adapterPath, Err: err}
	}

	s.handle = handle
	s.adapter = adapterPath
	s.status = StatusReady
	return nil
}

// Generate produces a completion from the active model. It fails fast with
// ErrNotReady while no model is ready.
func (s *Service) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.mu.RLock()
	handle, status := s.handle, s.status
	s.mu.RUnlock()

	if status != StatusReady || handle == nil {
		return "", ErrNotReady
	}
	return handle.Generate(ctx, prompt, maxTokens)
}

// State returns a snapshot of the service.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Status:        s.status,
		BaseModel:     s.baseModel,
		ActiveAdapter: s.adapter,
		Device:        s.device,
	}
}
