// Package mock provides test doubles for the punct package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
)

// LoadCall records a single invocation of Provider.Load.
type LoadCall struct {
	// Ctx is the context passed to Load.
	Ctx context.Context
	// Spec is the ModelSpec passed to Load.
	Spec punct.ModelSpec
}

// Provider is a mock implementation of punct.Provider.
type Provider struct {
	mu sync.Mutex

	// Model is the Model returned by Load. If nil, Load returns a new default
	// Model that predicts empty labels.
	Model punct.Model

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// LoadCalls records every call to Load.
	LoadCalls []LoadCall
}

// Load records the call and returns Model, LoadErr.
func (p *Provider) Load(ctx context.Context, spec punct.ModelSpec) (punct.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadCalls = append(p.LoadCalls, LoadCall{Ctx: ctx, Spec: spec})
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	if p.Model != nil {
		return p.Model, nil
	}
	return &Model{}, nil
}

// Ensure Provider implements punct.Provider at compile time.
var _ punct.Provider = (*Provider)(nil)

// PredictCall records a single invocation of Model.Predict.
type PredictCall struct {
	// Words is a copy of the word batch passed to Predict.
	Words []string
}

// Model is a mock implementation of punct.Model.
type Model struct {
	mu sync.Mutex

	// PredictFunc, if non-nil, computes the labels for each Predict call.
	// When nil, Predict returns one empty label per word.
	PredictFunc func(words []string) ([]string, error)

	// PredictErr, if non-nil, is returned by every Predict call.
	PredictErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// PredictCalls records every call to Predict in order.
	PredictCalls []PredictCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Predict records the call and returns labels per PredictFunc or one empty
// label per word.
func (m *Model) Predict(_ context.Context, words []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(words))
	copy(cp, words)
	m.PredictCalls = append(m.PredictCalls, PredictCall{Words: cp})
	if m.PredictErr != nil {
		return nil, m.PredictErr
	}
	if m.PredictFunc != nil {
		return m.PredictFunc(words)
	}
	return make([]string, len(words)), nil
}

// Close records the call and returns CloseErr.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCallCount++
	return m.CloseErr
}

// Closed reports whether Close has been called at least once. Thread-safe.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCallCount > 0
}

// Ensure Model implements punct.Model at compile time.
var _ punct.Model = (*Model)(nil)
