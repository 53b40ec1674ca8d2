// Package mock provides test doubles for the diarize package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/diarize"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// LoadCall records a single invocation of Provider.Load.
type LoadCall struct {
	// Ctx is the context passed to Load.
	Ctx context.Context
	// Spec is the ModelSpec passed to Load.
	Spec diarize.ModelSpec
}

// Provider is a mock implementation of diarize.Provider.
type Provider struct {
	mu sync.Mutex

	// Model is the Model returned by Load. If nil, Load returns a new default
	// Model with no turns.
	Model diarize.Model

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// LoadCalls records every call to Load.
	LoadCalls []LoadCall
}

// Load records the call and returns Model, LoadErr.
func (p *Provider) Load(ctx context.Context, spec diarize.ModelSpec) (diarize.Model, error) {
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

// Ensure Provider implements diarize.Provider at compile time.
var _ diarize.Provider = (*Provider)(nil)

// DiarizeCall records a single invocation of Model.Diarize.
type DiarizeCall struct {
	// Wave is the waveform passed to Diarize.
	Wave *audio.Waveform
	// Opts is the Options value passed to Diarize.
	Opts diarize.Options
}

// Model is a mock implementation of diarize.Model.
type Model struct {
	mu sync.Mutex

	// Turns is returned by every Diarize call.
	Turns []types.SpeakerTurn

	// DiarizeErr, if non-nil, is returned by every Diarize call.
	DiarizeErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// DiarizeCalls records every call to Diarize in order.
	DiarizeCalls []DiarizeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Diarize records the call and returns Turns, DiarizeErr.
func (m *Model) Diarize(_ context.Context, wave *audio.Waveform, opts diarize.Options) ([]types.SpeakerTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiarizeCalls = append(m.DiarizeCalls, DiarizeCall{Wave: wave, Opts: opts})
	if m.DiarizeErr != nil {
		return nil, m.DiarizeErr
	}
	return m.Turns, nil
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

// Ensure Model implements diarize.Model at compile time.
var _ diarize.Model = (*Model)(nil)
