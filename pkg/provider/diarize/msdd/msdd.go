// Package msdd provides a diarize.Provider backed by a NeMo multi-scale
// diarization decoder (MSDD) model server.
//
// The server runs the full NeMo pipeline (VAD, speaker embeddings, MSDD
// clustering); this client leases a model, uploads waveforms, and parses the
// resulting speaker turns.
//
// Usage:
//
//	p, err := msdd.New("http://localhost:9030")
//	model, err := p.Load(ctx, diarize.ModelSpec{Device: "cuda"})
//	defer model.Close()
//	turns, err := model.Diarize(ctx, wave, diarize.Options{})
package msdd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/diarize"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// defaultTimeout bounds a single HTTP exchange with the diarization server.
const defaultTimeout = 15 * time.Minute

// Compile-time assertion that Provider implements diarize.Provider.
var _ diarize.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements diarize.Provider backed by an MSDD model server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider that connects to the MSDD server at baseURL
// (e.g., "http://localhost:9030"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("msdd: baseURL must not be empty")
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

// Load leases the diarization model on the server. The caller owns the
// returned handle and must call Close when done.
func (p *Provider) Load(ctx context.Context, spec diarize.ModelSpec) (diarize.Model, error) {
	reqBody, err := json.Marshal(struct {
		Device string `json:"device"`
	}{spec.Device})
	if err != nil {
		return nil, fmt.Errorf("msdd: encode load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("msdd: create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("msdd: load model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("msdd: load model: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		ModelID string `json:"model_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("msdd: parse load response: %w", err)
	}
	if result.ModelID == "" {
		return nil, errors.New("msdd: server returned empty model_id")
	}

	return &model{
		baseURL:    p.baseURL,
		id:         result.ModelID,
		httpClient: p.httpClient,
	}, nil
}

// model is a leased MSDD model on the server. It implements diarize.Model.
type model struct {
	baseURL    string
	id         string
	httpClient *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Diarize uploads the waveform as a WAV file and returns the speaker turns
// the server derived from it. Speaker-count bounds are forwarded as form
// fields only when set.
func (m *model) Diarize(ctx context.Context, wave *audio.Waveform, opts diarize.Options) ([]types.SpeakerTurn, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("msdd: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(wave)); err != nil {
		return nil, fmt.Errorf("msdd: write wav data: %w", err)
	}

	if opts.MinSpeakers > 0 {
		if err := mw.WriteField("min_speakers", strconv.Itoa(opts.MinSpeakers)); err != nil {
			return nil, fmt.Errorf("msdd: write min_speakers field: %w", err)
		}
	}
	if opts.MaxSpeakers > 0 {
		if err := mw.WriteField("max_speakers", strconv.Itoa(opts.MaxSpeakers)); err != nil {
			return nil, fmt.Errorf("msdd: write max_speakers field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("msdd: close multipart writer: %w", err)
	}

	endpoint := m.baseURL + "/models/" + m.id + "/diarize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("msdd: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("msdd: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("msdd: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Turns []struct {
			Speaker int   `json:"speaker"`
			StartMs int64 `json:"start_ms"`
			EndMs   int64 `json:"end_ms"`
		} `json:"turns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("msdd: parse JSON response: %w", err)
	}

	turns := make([]types.SpeakerTurn, 0, len(result.Turns))
	for _, turn := range result.Turns {
		turns = append(turns, types.SpeakerTurn{
			Speaker: turn.Speaker,
			StartMs: turn.StartMs,
			EndMs:   turn.EndMs,
		})
	}
	return turns, nil
}

// Close releases the model lease on the server. Calling Close more than once
// is safe and returns the result of the first attempt.
func (m *model) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.baseURL+"/models/"+m.id, nil)
		if err != nil {
			m.closeErr = fmt.Errorf("msdd: create release request: %w", err)
			return
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			m.closeErr = fmt.Errorf("msdd: release model: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			m.closeErr = fmt.Errorf("msdd: release model: server returned HTTP %d", resp.StatusCode)
		}
	})
	return m.closeErr
}
