// Package whisper provides Whisper-backed implementations of asr.Provider.
//
// Two implementations are available. Provider talks to a faster-whisper model
// server over HTTP: Load leases a model on the server (POST /models), each
// Transcribe uploads the full waveform as a WAV file, and Close releases the
// lease so the server can free device memory. NativeProvider (native.go) runs
// whisper.cpp in process via its CGO bindings and needs no server at all.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:9010")
//	model, err := p.Load(ctx, asr.ModelSpec{Name: "medium.en", Device: "cpu", Compute: "int8"})
//	defer model.Close()
//	result, err := model.Transcribe(ctx, wave, asr.Options{BatchSize: 8})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// defaultTimeout bounds a single HTTP exchange with the model server.
// Transcribing an hour of audio on CPU can legitimately take many minutes,
// so this is far larger than a typical API client timeout.
const defaultTimeout = 15 * time.Minute

// Compile-time assertion that Provider implements asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client. Useful for tests and for
// callers that need custom transport settings or a different timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements asr.Provider backed by a faster-whisper model server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider that connects to the faster-whisper model server at
// baseURL (e.g., "http://localhost:9010"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Load leases a model on the server. The server loads the named weights onto
// the requested device and returns an identifier the lease is addressed by.
// The caller owns the returned handle and must call Close when done.
func (p *Provider) Load(ctx context.Context, spec asr.ModelSpec) (asr.Model, error) {
	reqBody, err := json.Marshal(struct {
		Model       string `json:"model"`
		Device      string `json:"device"`
		ComputeType string `json:"compute_type"`
	}{
		Model:       spec.Name,
		Device:      spec.Device,
		ComputeType: spec.Compute,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper: encode load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("whisper: create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: load model %q: server returned HTTP %d", spec.Name, resp.StatusCode)
	}

	var result struct {
		ModelID string `json:"model_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: parse load response: %w", err)
	}
	if result.ModelID == "" {
		return nil, errors.New("whisper: server returned empty model_id")
	}

	return &model{
		baseURL:    p.baseURL,
		id:         result.ModelID,
		httpClient: p.httpClient,
	}, nil
}

// model is a leased faster-whisper model on the server. It implements
// asr.Model.
type model struct {
	baseURL    string
	id         string
	httpClient *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Transcribe uploads the waveform as a WAV file and returns the recognised
// segments. Language, batch size, and numeral suppression are forwarded as
// form fields alongside the audio.
func (m *model) Transcribe(ctx context.Context, wave *audio.Waveform, opts asr.Options) (*asr.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(wave)); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	if opts.Language != "" {
		if err := mw.WriteField("language", opts.Language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.WriteField("batch_size", strconv.Itoa(opts.BatchSize)); err != nil {
		return nil, fmt.Errorf("whisper: write batch_size field: %w", err)
	}
	if opts.SuppressNumerals {
		if err := mw.WriteField("suppress_numerals", "true"); err != nil {
			return nil, fmt.Errorf("whisper: write suppress_numerals field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := m.baseURL + "/models/" + m.id + "/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Segments []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"segments"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	segments := make([]types.TranscriptSegment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, types.TranscriptSegment{
			Text:  seg.Text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	language := result.Language
	if language == "" {
		language = opts.Language
	}

	return &asr.Result{
		Segments: segments,
		Language: language,
		Duration: result.Duration,
	}, nil
}

// Close releases the model lease on the server. Calling Close more than once
// is safe and returns the result of the first attempt.
func (m *model) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.baseURL+"/models/"+m.id, nil)
		if err != nil {
			m.closeErr = fmt.Errorf("whisper: create release request: %w", err)
			return
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			m.closeErr = fmt.Errorf("whisper: release model: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			m.closeErr = fmt.Errorf("whisper: release model: server returned HTTP %d", resp.StatusCode)
		}
	})
	return m.closeErr
}
