package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/incident-etl/internal/domain"
)

// ReportProvider returns the report of the most recently processed document.
type ReportProvider interface {
	LastReport() (domain.Report, bool)
}

// runSummary is the /runs/latest body. The incident list itself goes to the
// configured sinks, not over HTTP.
type runSummary struct {
	RunID     string         `json:"run_id"`
	Source    string         `json:"source"`
	Pages     int            `json:"pages"`
	Lines     int            `json:"lines"`
	Incidents int            `json:"incidents"`
	Dropped   map[string]int `json:"dropped"`
}

// Server exposes health, readiness, metrics and last-run HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /runs/latest routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /runs/latest", handleLatestRun(reports))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleLatestRun(reports ReportProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		r, ok := reports.LastReport()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no document processed yet"})
			return
		}
		dropped := r.Dropped
		if dropped == nil {
			dropped = map[string]int{}
		}
		sharedobs.WriteJSON(w, http.StatusOK, runSummary{
			RunID:     r.RunID,
			Source:    r.Source,
			Pages:     r.Pages,
			Lines:     r.Lines,
			Incidents: len(r.Incidents),
			Dropped:   dropped,
		})
	}
}
