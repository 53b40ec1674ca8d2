package fullstop_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct/fullstop"
)

// ---- helpers ----------------------------------------------------------------

const testModelID = "p-9"

// punctServer is a fake punctuation model server.
type punctServer struct {
	srv *httptest.Server

	// predictBody is the raw JSON returned by the predict endpoint.
	predictBody string

	mu          sync.Mutex
	loadBody    map[string]string
	words       []string
	deleteCalls int
}

func newPunctServer(t *testing.T, predictBody string) *punctServer {
	t.Helper()
	ps := &punctServer{predictBody: predictBody}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/models":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			ps.mu.Lock()
			ps.loadBody = body
			ps.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": testModelID})

		case r.Method == http.MethodPost && r.URL.Path == "/models/"+testModelID+"/predict":
			var body struct {
				Words []string `json:"words"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			ps.mu.Lock()
			ps.words = body.Words
			ps.mu.Unlock()
			_, _ = io.WriteString(w, ps.predictBody)

		case r.Method == http.MethodDelete && r.URL.Path == "/models/"+testModelID:
			ps.mu.Lock()
			ps.deleteCalls++
			ps.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func mustLoad(t *testing.T, p *fullstop.Provider, spec punct.ModelSpec) punct.Model {
	t.Helper()
	m, err := p.Load(context.Background(), spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyBaseURL_ReturnsError(t *testing.T) {
	_, err := fullstop.New("")
	if err == nil {
		t.Fatal("expected error for empty baseURL, got nil")
	}
}

// ---- model loading ----------------------------------------------------------

func TestLoad_SendsModelName(t *testing.T) {
	ps := newPunctServer(t, `{"labels":[]}`)

	p, _ := fullstop.New(ps.srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})
	defer m.Close()

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if got := ps.loadBody["model"]; got != "kredor/punctuate-all" {
		t.Errorf("load body model = %q; want kredor/punctuate-all", got)
	}
}

// ---- prediction -------------------------------------------------------------

func TestPredict_ReturnsLabels(t *testing.T) {
	ps := newPunctServer(t, `{"labels":["",".","?"]}`)

	p, _ := fullstop.New(ps.srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})
	defer m.Close()

	labels, err := m.Predict(context.Background(), []string{"hello", "world", "really"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	want := []string{"", ".", "?"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels; want %d", len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label[%d] = %q; want %q", i, labels[i], want[i])
		}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.words) != 3 || ps.words[0] != "hello" {
		t.Errorf("server received words %v; want [hello world really]", ps.words)
	}
}

func TestPredict_LabelCountMismatch_ReturnsError(t *testing.T) {
	ps := newPunctServer(t, `{"labels":["."]}`)

	p, _ := fullstop.New(ps.srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})
	defer m.Close()

	if _, err := m.Predict(context.Background(), []string{"two", "words"}); err == nil {
		t.Fatal("expected error for label count mismatch, got nil")
	}
}

func TestPredict_EmptyInput_NoRequest(t *testing.T) {
	ps := newPunctServer(t, `{"labels":[]}`)

	p, _ := fullstop.New(ps.srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})
	defer m.Close()

	labels, err := m.Predict(context.Background(), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if labels != nil {
		t.Errorf("got %v; want nil for empty input", labels)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.words != nil {
		t.Error("server should not receive a request for empty input")
	}
}

func TestPredict_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/models" {
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": testModelID})
			return
		}
		http.Error(w, "prediction failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := fullstop.New(srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})

	if _, err := m.Predict(context.Background(), []string{"word"}); err == nil {
		t.Fatal("expected error for failing predict, got nil")
	}
}

// ---- model release ----------------------------------------------------------

func TestClose_Idempotent(t *testing.T) {
	ps := newPunctServer(t, `{"labels":[]}`)

	p, _ := fullstop.New(ps.srv.URL)
	m := mustLoad(t, p, punct.ModelSpec{Model: "kredor/punctuate-all"})

	if err := m.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.deleteCalls != 1 {
		t.Errorf("release called %d time(s) after double Close; want 1", ps.deleteCalls)
	}
}
