package observe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the Prometheus scrape endpoint for the duration of a
// pipeline run. Batch runs are short-lived compared to services, but long
// enough that scraping stage progress is worthwhile; the server is started
// before the first stage and shut down after the result is written.
type MetricsServer struct {
	srv *http.Server
	mux *http.ServeMux
}

// NewMetricsServer creates a server bound to addr with the Prometheus
// handler mounted at /metrics. Additional handlers (health probes) can be
// mounted before Start.
func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux: mux,
	}
}

// Handle mounts an extra handler on the server's mux. Must be called before
// Start.
func (s *MetricsServer) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// HandleFunc mounts an extra handler function on the server's mux. Must be
// called before Start.
func (s *MetricsServer) HandleFunc(pattern string, h func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, h)
}

// Start begins serving in a background goroutine. Listen failures are logged
// rather than returned: a broken scrape endpoint must not abort the run.
func (s *MetricsServer) Start() {
	go func() {
		slog.Info("metrics listener started", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener failed", "error", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight scrapes up to the context
// deadline.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
