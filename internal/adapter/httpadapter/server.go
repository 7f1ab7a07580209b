package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/ingest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators behind the API routes.
type Deps struct {
	Standards  *domain.StandardsTable
	Aggregator *aggregate.Aggregator
	Ingestor   *ingest.Ingestor
	// Sink receives manually entered samples. It should end in Aggregator.
	Sink           domain.SampleSink
	Ready          sharedobs.ReadinessChecker
	MaxUploadBytes int64
}

// Server exposes the assessment API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /api routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/standards", s.handleStandards)
	mux.HandleFunc("POST /api/samples/import", s.handleImport)
	mux.HandleFunc("POST /api/samples", s.handleCreateSample)
	mux.HandleFunc("GET /api/samples", s.handleListSamples)
	mux.HandleFunc("POST /api/assess", s.handleAssess)
	mux.HandleFunc("GET /api/analytics/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/analytics/distribution", s.handleDistribution)
	mux.HandleFunc("GET /api/analytics/summary", s.handleSummary)
	mux.HandleFunc("GET /api/analytics/trend", s.handleTrend)
	mux.HandleFunc("GET /api/analytics/report", s.handleReport)
	mux.HandleFunc("GET /api/export.csv", s.handleExport)
	mux.HandleFunc("GET /api/template.csv", s.handleTemplate)

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
