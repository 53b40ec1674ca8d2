// Package mock provides test doubles for the asr package interfaces.
//
// Use Provider to verify that the caller loads models with the expected
// ModelSpec. Use Model to return canned transcription results and inspect
// the options each Transcribe call carried.
//
// Example:
//
//	m := &mock.Model{Result: &asr.Result{Language: "en"}}
//	p := &mock.Provider{Model: m}
//	handle, _ := p.Load(ctx, spec)
package mock

import (
	"context"
	"sync"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
)

// LoadCall records a single invocation of Provider.Load.
type LoadCall struct {
	// Ctx is the context passed to Load.
	Ctx context.Context
	// Spec is the ModelSpec passed to Load.
	Spec asr.ModelSpec
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Model is the Model returned by Load. If nil, Load returns a new default
	// Model with an empty Result.
	Model asr.Model

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// LoadCalls records every call to Load.
	LoadCalls []LoadCall
}

// Load records the call and returns Model, LoadErr.
func (p *Provider) Load(ctx context.Context, spec asr.ModelSpec) (asr.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadCalls = append(p.LoadCalls, LoadCall{Ctx: ctx, Spec: spec})
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	if p.Model != nil {
		return p.Model, nil
	}
	return &Model{Result: &asr.Result{}}, nil
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Model.Transcribe.
type TranscribeCall struct {
	// Wave is the waveform passed to Transcribe.
	Wave *audio.Waveform
	// Opts is the Options value passed to Transcribe.
	Opts asr.Options
}

// Model is a mock implementation of asr.Model.
type Model struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call.
	Result *asr.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call and returns Result, TranscribeErr.
func (m *Model) Transcribe(_ context.Context, wave *audio.Waveform, opts asr.Options) (*asr.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Wave: wave, Opts: opts})
	if m.TranscribeErr != nil {
		return nil, m.TranscribeErr
	}
	return m.Result, nil
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

// Ensure Model implements asr.Model at compile time.
var _ asr.Model = (*Model)(nil)
