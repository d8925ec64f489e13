// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	service "github.com/okian/sortie/internal/app"
	"github.com/okian/sortie/internal/domain/model"
)

// Pipeline runs the digest for a request's preferences.
type Pipeline interface {
	Run(ctx context.Context, prefs model.Preferences, o service.RunOptions) (*service.Result, error)
}

// StatsProvider exposes the last run summary.
type StatsProvider interface {
	LastRun() (service.Summary, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	digestHandler *DigestHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(pipeline Pipeline, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		digestHandler: NewDigestHandler(pipeline),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/digest", MetricsMiddleware(s.digestHandler.HandlePostDigest, "digest"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
