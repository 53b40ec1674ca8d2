// Package mock provides test doubles for the align package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/align"
)

// LoadCall records a single invocation of Provider.Load.
type LoadCall struct {
	// Ctx is the context passed to Load.
	Ctx context.Context
	// Spec is the ModelSpec passed to Load.
	Spec align.ModelSpec
}

// Provider is a mock implementation of align.Provider.
type Provider struct {
	mu sync.Mutex

	// Model is the Model returned by Load. If nil, Load returns a new default
	// Model.
	Model align.Model

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// LoadCalls records every call to Load.
	LoadCalls []LoadCall
}

// Load records the call and returns Model, LoadErr.
func (p *Provider) Load(ctx context.Context, spec align.ModelSpec) (align.Model, error) {
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

// Ensure Provider implements align.Provider at compile time.
var _ align.Provider = (*Provider)(nil)

// EmitCall records a single invocation of Model.Emit.
type EmitCall struct {
	// Wave is the waveform passed to Emit.
	Wave *audio.Waveform
	// BatchSize is the batch size passed to Emit.
	BatchSize int
}

// PreprocessCall records a single invocation of Model.Preprocess.
type PreprocessCall struct {
	// Transcript is the transcript passed to Preprocess.
	Transcript string
	// Language is the ISO 639-3 code passed to Preprocess.
	Language string
}

// AlignCall records a single invocation of Model.Align.
type AlignCall struct {
	// Emissions is the emissions reference passed to Align.
	Emissions *align.Emissions
	// TokenSet is the token set passed to Align.
	TokenSet *align.TokenSet
}

// Model is a mock implementation of align.Model. Pre-populate the *Result
// fields with the values each operation should return.
type Model struct {
	mu sync.Mutex

	// EmitResult is returned by every Emit call. If nil, an empty Emissions
	// is returned.
	EmitResult *align.Emissions

	// PreprocessResult is returned by every Preprocess call. If nil, an
	// empty TokenSet is returned.
	PreprocessResult *align.TokenSet

	// AlignResult is returned by every Align call. If nil, an empty
	// Alignment is returned.
	AlignResult *align.Alignment

	// EmitErr, PreprocessErr, AlignErr, and CloseErr, if non-nil, are
	// returned by the corresponding operation.
	EmitErr       error
	PreprocessErr error
	AlignErr      error
	CloseErr      error

	// EmitCalls, PreprocessCalls, and AlignCalls record every call in order.
	EmitCalls       []EmitCall
	PreprocessCalls []PreprocessCall
	AlignCalls      []AlignCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Emit records the call and returns EmitResult, EmitErr.
func (m *Model) Emit(_ context.Context, wave *audio.Waveform, batchSize int) (*align.Emissions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmitCalls = append(m.EmitCalls, EmitCall{Wave: wave, BatchSize: batchSize})
	if m.EmitErr != nil {
		return nil, m.EmitErr
	}
	if m.EmitResult != nil {
		return m.EmitResult, nil
	}
	return &align.Emissions{}, nil
}

// Preprocess records the call and returns PreprocessResult, PreprocessErr.
func (m *Model) Preprocess(_ context.Context, transcript, language string) (*align.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PreprocessCalls = append(m.PreprocessCalls, PreprocessCall{Transcript: transcript, Language: language})
	if m.PreprocessErr != nil {
		return nil, m.PreprocessErr
	}
	if m.PreprocessResult != nil {
		return m.PreprocessResult, nil
	}
	return &align.TokenSet{}, nil
}

// Align records the call and returns AlignResult, AlignErr.
func (m *Model) Align(_ context.Context, em *align.Emissions, ts *align.TokenSet) (*align.Alignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlignCalls = append(m.AlignCalls, AlignCall{Emissions: em, TokenSet: ts})
	if m.AlignErr != nil {
		return nil, m.AlignErr
	}
	if m.AlignResult != nil {
		return m.AlignResult, nil
	}
	return &align.Alignment{}, nil
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

// Ensure Model implements align.Model at compile time.
var _ align.Model = (*Model)(nil)
