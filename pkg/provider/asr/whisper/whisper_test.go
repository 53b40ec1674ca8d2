package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr/whisper"
)

// ---- helpers ----------------------------------------------------------------

const testModelID = "m-42"

// modelServer is a fake faster-whisper model server. It records the load
// request body, the form fields of every transcribe call, and the number of
// release calls.
type modelServer struct {
	srv *httptest.Server

	// transcribeBody is the raw JSON returned by the transcribe endpoint.
	transcribeBody string
	// loadStatus overrides the load response status when non-zero.
	loadStatus int

	mu          sync.Mutex
	loadBody    map[string]string
	form        map[string]string
	audioHeader string
	deleteCalls int
}

func newModelServer(t *testing.T, transcribeBody string) *modelServer {
	t.Helper()
	ms := &modelServer{transcribeBody: transcribeBody}
	ms.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/models":
			if ms.loadStatus != 0 {
				http.Error(w, "load failed", ms.loadStatus)
				return
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ms.mu.Lock()
			ms.loadBody = body
			ms.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": testModelID})

		case r.Method == http.MethodPost && r.URL.Path == "/models/"+testModelID+"/transcribe":
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			form := make(map[string]string)
			for key := range r.MultipartForm.Value {
				form[key] = r.FormValue(key)
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			header := make([]byte, 4)
			_, _ = io.ReadFull(file, header)
			file.Close()
			ms.mu.Lock()
			ms.form = form
			ms.audioHeader = string(header)
			ms.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, ms.transcribeBody)

		case r.Method == http.MethodDelete && r.URL.Path == "/models/"+testModelID:
			ms.mu.Lock()
			ms.deleteCalls++
			ms.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(ms.srv.Close)
	return ms
}

// mustLoad loads a model via the provider and fails the test on error.
func mustLoad(t *testing.T, p *whisper.Provider, spec asr.ModelSpec) asr.Model {
	t.Helper()
	m, err := p.Load(context.Background(), spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// testWave returns a short silent waveform suitable for upload tests.
func testWave() *audio.Waveform {
	return &audio.Waveform{
		Samples:    make([]float32, audio.DecodeSampleRate/10), // 100 ms
		SampleRate: audio.DecodeSampleRate,
	}
}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyBaseURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty baseURL, got nil")
	}
}

func TestNew_ValidBaseURL_ReturnsProvider(t *testing.T) {
	p, err := whisper.New("http://localhost:9010")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

// ---- model loading ----------------------------------------------------------

func TestLoad_SendsSpec(t *testing.T) {
	ms := newModelServer(t, `{"segments":[]}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en", Device: "cuda:1", Compute: "float16"})
	defer m.Close()

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if got := ms.loadBody["model"]; got != "medium.en" {
		t.Errorf("load body model = %q; want medium.en", got)
	}
	if got := ms.loadBody["device"]; got != "cuda:1" {
		t.Errorf("load body device = %q; want cuda:1", got)
	}
	if got := ms.loadBody["compute_type"]; got != "float16" {
		t.Errorf("load body compute_type = %q; want float16", got)
	}
}

func TestLoad_ServerError_ReturnsError(t *testing.T) {
	ms := newModelServer(t, `{}`)
	ms.loadStatus = http.StatusInternalServerError

	p, _ := whisper.New(ms.srv.URL)
	if _, err := p.Load(context.Background(), asr.ModelSpec{Name: "medium.en"}); err == nil {
		t.Fatal("expected error for failing load, got nil")
	}
}

func TestLoad_EmptyModelID_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model_id":""}`)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	if _, err := p.Load(context.Background(), asr.ModelSpec{Name: "medium.en"}); err == nil {
		t.Fatal("expected error for empty model_id, got nil")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_ParsesSegments(t *testing.T) {
	ms := newModelServer(t, `{
		"segments": [
			{"text": " Hello there.", "start": 0.0, "end": 1.4},
			{"text": " General Kenobi.", "start": 1.6, "end": 3.1}
		],
		"language": "en",
		"duration": 3.5
	}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})
	defer m.Close()

	result, err := m.Transcribe(context.Background(), testWave(), asr.Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(result.Segments) != 2 {
		t.Fatalf("got %d segments; want 2", len(result.Segments))
	}
	if got := result.Segments[0].Text; got != " Hello there." {
		t.Errorf("segment[0].Text = %q; want %q", got, " Hello there.")
	}
	if got := result.Segments[1].Start; got != 1.6 {
		t.Errorf("segment[1].Start = %v; want 1.6", got)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q; want en", result.Language)
	}
	if result.Duration != 3.5 {
		t.Errorf("Duration = %v; want 3.5", result.Duration)
	}
	if got := result.Transcript(); got != " Hello there. General Kenobi." {
		t.Errorf("Transcript() = %q; want %q", got, " Hello there. General Kenobi.")
	}
}

func TestTranscribe_SendsOptionsAsFormFields(t *testing.T) {
	ms := newModelServer(t, `{"segments":[]}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})
	defer m.Close()

	_, err := m.Transcribe(context.Background(), testWave(), asr.Options{
		Language:         "de",
		BatchSize:        8,
		SuppressNumerals: true,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if got := ms.form["language"]; got != "de" {
		t.Errorf("language field = %q; want de", got)
	}
	if got := ms.form["batch_size"]; got != "8" {
		t.Errorf("batch_size field = %q; want 8", got)
	}
	if got := ms.form["suppress_numerals"]; got != "true" {
		t.Errorf("suppress_numerals field = %q; want true", got)
	}
	if ms.audioHeader != "RIFF" {
		t.Errorf("uploaded audio starts with %q; want RIFF (WAV container)", ms.audioHeader)
	}
}

func TestTranscribe_ZeroBatchSizeStillSent(t *testing.T) {
	ms := newModelServer(t, `{"segments":[]}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})
	defer m.Close()

	if _, err := m.Transcribe(context.Background(), testWave(), asr.Options{BatchSize: 0}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if got := ms.form["batch_size"]; got != "0" {
		t.Errorf("batch_size field = %q; want 0", got)
	}
	if _, ok := ms.form["language"]; ok {
		t.Error("language field should be omitted when no language is requested")
	}
	if _, ok := ms.form["suppress_numerals"]; ok {
		t.Error("suppress_numerals field should be omitted when not requested")
	}
}

func TestTranscribe_MissingLanguageFallsBackToRequested(t *testing.T) {
	ms := newModelServer(t, `{"segments":[],"duration":1.0}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium"})
	defer m.Close()

	result, err := m.Transcribe(context.Background(), testWave(), asr.Options{Language: "fr"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Language != "fr" {
		t.Errorf("Language = %q; want fr (requested)", result.Language)
	}
}

func TestTranscribe_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/models" {
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": testModelID})
			return
		}
		http.Error(w, "inference failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})

	_, err := m.Transcribe(context.Background(), testWave(), asr.Options{})
	if err == nil {
		t.Fatal("expected error for failing transcribe, got nil")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should mention the HTTP status", err)
	}
}

// ---- model release ----------------------------------------------------------

func TestClose_ReleasesLease(t *testing.T) {
	ms := newModelServer(t, `{"segments":[]}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.deleteCalls != 1 {
		t.Errorf("release called %d time(s); want 1", ms.deleteCalls)
	}
}

func TestClose_Idempotent(t *testing.T) {
	ms := newModelServer(t, `{"segments":[]}`)

	p, _ := whisper.New(ms.srv.URL)
	m := mustLoad(t, p, asr.ModelSpec{Name: "medium.en"})

	if err := m.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.deleteCalls != 1 {
		t.Errorf("release called %d time(s) after double Close; want 1", ms.deleteCalls)
	}
}
