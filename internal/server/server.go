// Package server exposes the monitoring engine over HTTP: control endpoints,
// read-only views, session reports and exports, a websocket stream and the
// Prometheus scrape endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netpulse/internal/cache"
	"netpulse/internal/logger"
	"netpulse/internal/metrics"
	"netpulse/internal/session"
	"netpulse/internal/stream"
)

const version = "1.0.0"

type Server struct {
	router   *mux.Router
	handler  http.Handler
	runner   *session.Runner
	ctl      *session.Controller
	archive  cache.Archive
	hub      *stream.Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewServer(runner *session.Runner, archive cache.Archive, hub *stream.Hub, log *logger.Logger, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		router:  mux.NewRouter(),
		runner:  runner,
		ctl:     runner.Controller(),
		archive: archive,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}

	s.setupRoutes()
	s.handler = cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	})(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(metrics.Middleware)

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")

	s.router.HandleFunc("/nodes", s.listNodesHandler).Methods("GET")
	s.router.HandleFunc("/nodes", s.replaceNodesHandler).Methods("PUT")
	s.router.HandleFunc("/nodes", s.addNodeHandler).Methods("POST")

	s.router.HandleFunc("/session/start", s.startHandler).Methods("POST")
	s.router.HandleFunc("/session/stop", s.stopHandler).Methods("POST")
	s.router.HandleFunc("/session/close", s.closeHandler).Methods("POST")
	s.router.HandleFunc("/session/report", s.currentReportHandler).Methods("GET")
	s.router.HandleFunc("/session/export.csv", s.currentExportHandler).Methods("GET")

	s.router.HandleFunc("/stats/live", s.liveStatsHandler).Methods("GET")
	s.router.HandleFunc("/stats/session", s.sessionStatsHandler).Methods("GET")
	s.router.HandleFunc("/chart", s.chartHandler).Methods("GET")
	s.router.HandleFunc("/anomalies", s.anomaliesHandler).Methods("GET")
	s.router.HandleFunc("/topology", s.topologyHandler).Methods("GET")

	s.router.HandleFunc("/sessions", s.listSessionsHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/report", s.archivedReportHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/export.csv", s.archivedExportHandler).Methods("GET")

	s.router.HandleFunc("/ws", s.wsHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info("server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("could not gracefully shutdown the server", "error", err)
		}
	}()

	s.log.Info("server is ready to handle requests", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "could not listen on %s", addr)
	}

	<-done
	s.log.Info("server stopped")
	return nil
}
