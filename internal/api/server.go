// Package api serves the HTTP surface shared by the estimator and the beacon
// simulator: runtime settings, a websocket push stream, the scatter page,
// health and metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"beacon-trilateration/internal/chart"
	"beacon-trilateration/internal/config"
	"beacon-trilateration/internal/metrics"
	"beacon-trilateration/internal/transport"
)

// Server represents an HTTP server with all routes configured.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	logger *slog.Logger
}

// Deps are the components the routes are served from. Stream and Latest are
// optional; their routes are only mounted when set.
type Deps struct {
	Runtime    *config.Runtime
	Stream     *transport.Broadcaster
	StreamPath string
	Latest     *chart.Latest
	Metrics    *metrics.Collector
}

// Stream paths used by the two servers.
const (
	EstimateStreamPath = "/ws/estimates"
	ReadingStreamPath  = "/{$}"
)

// NewServer creates a new HTTP server with configured routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	settings := NewSettingsHandler(deps.Runtime, recorderOrNil(deps.Metrics), logger)
	mux.HandleFunc("GET /settings", settings.Get)
	mux.HandleFunc("POST /settings", settings.Update)
	mux.HandleFunc("GET /health", handleHealth)
	if deps.Stream != nil {
		path := deps.StreamPath
		if path == "" {
			path = EstimateStreamPath
		}
		mux.HandleFunc("GET "+path, deps.Stream.Handler())
	}
	if deps.Latest != nil {
		mux.HandleFunc("GET /chart", deps.Latest.Handler())
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	return &Server{
		mux:    mux,
		logger: logger,
		server: &http.Server{
			Addr:        addr,
			Handler:     withCORS(deps.Metrics.Middleware(mux)),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe begins listening for HTTP requests.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withCORS allows the settings form to post from another origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recorderOrNil avoids storing a typed nil pointer in the interface.
func recorderOrNil(c *metrics.Collector) SettingsRecorder {
	if c == nil {
		return nil
	}
	return c
}
