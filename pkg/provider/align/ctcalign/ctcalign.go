// Package ctcalign provides an align.Provider backed by a CTC forced-aligner
// model server.
//
// The server holds the alignment model and the emission matrices; this client
// leases a model (POST /models), uploads waveforms for emission computation,
// and drives the preprocess/align steps with JSON requests. Emission matrices
// are addressed by the opaque reference from Emit, so the large float tensors
// never travel over HTTP.
//
// Usage:
//
//	p, err := ctcalign.New("http://localhost:9020")
//	model, err := p.Load(ctx, align.ModelSpec{Device: "cpu", Compute: "float32"})
//	defer model.Close()
//	em, err := model.Emit(ctx, wave, 4)
package ctcalign

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
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/align"
)

// defaultTimeout bounds a single HTTP exchange with the aligner server.
// Emission computation on CPU over long recordings dominates; everything
// else is quick.
const defaultTimeout = 15 * time.Minute

// Compile-time assertion that Provider implements align.Provider.
var _ align.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements align.Provider backed by a forced-aligner model server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider that connects to the aligner server at baseURL
// (e.g., "http://localhost:9020"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("ctcalign: baseURL must not be empty")
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

// Load leases the alignment model on the server. The caller owns the
// returned handle and must call Close when done.
func (p *Provider) Load(ctx context.Context, spec align.ModelSpec) (align.Model, error) {
	reqBody, err := json.Marshal(struct {
		Device      string `json:"device"`
		ComputeType string `json:"compute_type"`
	}{
		Device:      spec.Device,
		ComputeType: spec.Compute,
	})
	if err != nil {
		return nil, fmt.Errorf("ctcalign: encode load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("ctcalign: create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ctcalign: load model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ctcalign: load model: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		ModelID string `json:"model_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ctcalign: parse load response: %w", err)
	}
	if result.ModelID == "" {
		return nil, errors.New("ctcalign: server returned empty model_id")
	}

	return &model{
		baseURL:    p.baseURL,
		id:         result.ModelID,
		httpClient: p.httpClient,
	}, nil
}

// model is a leased alignment model on the server. It implements align.Model.
type model struct {
	baseURL    string
	id         string
	httpClient *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Emit uploads the waveform as a WAV file and returns a reference to the
// emission matrix the server computed from it.
func (m *model) Emit(ctx context.Context, wave *audio.Waveform, batchSize int) (*align.Emissions, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("ctcalign: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(wave)); err != nil {
		return nil, fmt.Errorf("ctcalign: write wav data: %w", err)
	}
	if err := mw.WriteField("batch_size", strconv.Itoa(batchSize)); err != nil {
		return nil, fmt.Errorf("ctcalign: write batch_size field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("ctcalign: close multipart writer: %w", err)
	}

	endpoint := m.baseURL + "/models/" + m.id + "/emissions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("ctcalign: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ctcalign: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ctcalign: server returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Ref      string  `json:"ref"`
		Frames   int     `json:"frames"`
		StrideMs float64 `json:"stride_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ctcalign: parse emissions response: %w", err)
	}
	if result.Ref == "" {
		return nil, errors.New("ctcalign: server returned empty emissions ref")
	}

	return &align.Emissions{
		Ref:      result.Ref,
		Frames:   result.Frames,
		StrideMs: result.StrideMs,
	}, nil
}

// Preprocess tokenises the transcript server-side and returns the alignment
// units together with the original words.
func (m *model) Preprocess(ctx context.Context, transcript, language string) (*align.TokenSet, error) {
	var result struct {
		Tokens []string `json:"tokens"`
		Words  []string `json:"words"`
	}
	if err := m.postJSON(ctx, "preprocess", struct {
		Transcript string `json:"transcript"`
		Language   string `json:"language"`
	}{transcript, language}, &result); err != nil {
		return nil, err
	}
	return &align.TokenSet{Tokens: result.Tokens, Words: result.Words}, nil
}

// Align runs the Viterbi pass over the referenced emission matrix and
// returns one frame span per token.
func (m *model) Align(ctx context.Context, em *align.Emissions, ts *align.TokenSet) (*align.Alignment, error) {
	var result struct {
		Spans []struct {
			Start int     `json:"start"`
			End   int     `json:"end"`
			Score float64 `json:"score"`
		} `json:"spans"`
		Blank string `json:"blank"`
	}
	if err := m.postJSON(ctx, "align", struct {
		Ref    string   `json:"ref"`
		Tokens []string `json:"tokens"`
	}{em.Ref, ts.Tokens}, &result); err != nil {
		return nil, err
	}

	spans := make([]align.Span, 0, len(result.Spans))
	for _, s := range result.Spans {
		spans = append(spans, align.Span{Start: s.Start, End: s.End, Score: s.Score})
	}
	return &align.Alignment{Spans: spans, Blank: result.Blank}, nil
}

// postJSON sends a JSON request to a model-scoped operation endpoint and
// decodes the JSON response into out.
func (m *model) postJSON(ctx context.Context, op string, in, out any) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ctcalign: encode %s request: %w", op, err)
	}

	endpoint := m.baseURL + "/models/" + m.id + "/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("ctcalign: create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ctcalign: %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ctcalign: %s: server returned HTTP %d", op, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ctcalign: parse %s response: %w", op, err)
	}
	return nil
}

// Close releases the model lease on the server. Calling Close more than once
// is safe and returns the result of the first attempt.
func (m *model) Close() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.baseURL+"/models/"+m.id, nil)
		if err != nil {
			m.closeErr = fmt.Errorf("ctcalign: create release request: %w", err)
			return
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			m.closeErr = fmt.Errorf("ctcalign: release model: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			m.closeErr = fmt.Errorf("ctcalign: release model: server returned HTTP %d", resp.StatusCode)
		}
	})
	return m.closeErr
}
