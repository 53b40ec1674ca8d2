// Package fullstop provides a punct.Provider backed by a token-classification
// model server running a FullStop-style punctuation model.
//
// The server wraps a Hugging Face token-classification pipeline; this client
// leases a model and sends word batches as JSON. The server returns one
// punctuation label per word.
//
// Usage:
//
//	p, err := fullstop.New("http://localhost:9040")
//	model, err := p.Load(ctx, punct.ModelSpec{Model: "kredor/punctuate-all"})
//	defer model.Close()
//	labels, err := model.Predict(ctx, words)
package fullstop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
)

// defaultTimeout bounds a single HTTP exchange with the model server.
// Prediction batches are small, so this is much tighter than the audio
// stages.
const defaultTimeout = 2 * time.Minute

// Compile-time assertion that Provider implements punct.Provider.
var _ punct.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements punct.Provider backed by a punctuation model server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider that connects to the model server at baseURL
// (e.g., "http://localhost:9040"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("fullstop: baseURL must not be empty")
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

// Load leases the named model on the server. The caller owns the returned
// handle and must call Close when done.
func (p *Provider) Load(ctx context.Context, spec punct.ModelSpec) (punct.Model, error) {
	reqBody, err := json.Marshal(struct {
		Model string `json:"model"`
	}{spec.Model})
	if err != nil {
		return nil, fmt.Errorf("fullstop: encode load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("fullstop: create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fullstop: load model %q: %w", spec.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fullstop: load model %q: server returned HTTP %d", spec.Model, resp.StatusCode)
	}

	var result struct {
		ModelID string `json:"model_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fullstop: parse load response: %w", err)
	}
	if result.ModelID == "" {
		return nil, errors.New("fullstop: server returned empty model_id")
	}

	return &model{
		baseURL:    p.baseURL,
		id:         result.ModelID,
		httpClient: p.httpClient,
	}, nil
}

// model is a leased punctuation model on the server. It implements
// punct.Model.
type model struct {
	baseURL    string
	id         string
	httpClient *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Predict sends the word batch and returns the predicted labels. The label
// count must match the word count; a mismatch is treated as a protocol error.
func (m *model) Predict(ctx context.Context, words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, nil
	}

	reqBody, err := json.Marshal(struct {
		Words []string `json:"words"`
	}{words})
	if err != nil {
		return nil, fmt.Errorf("fullstop: encode predict request: %w", err)
	}

	endpoint := m.baseURL + "/models/" + m.id + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("fullstop: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fullstop: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fullstop: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Labels []string `json:"labels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fullstop: parse JSON response: %w", err)
	}
	if len(result.Labels) != len(words) {
		return nil, fmt.Errorf("fullstop: got %d labels for %d words", len(result.Labels), len(words))
	}

	return result.Labels, nil
}

// Close releases the model lease on the server. Calling Close more than once
// is safe and returns the result of the first attempt.
func (m *model) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.baseURL+"/models/"+m.id, nil)
		if err != nil {
			m.closeErr = fmt.Errorf("fullstop: create release request: %w", err)
			return
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			m.closeErr = fmt.Errorf("fullstop: release model: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			m.closeErr = fmt.Errorf("fullstop: release model: server returned HTTP %d", resp.StatusCode)
		}
	})
	return m.closeErr
}
