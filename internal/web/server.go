// internal/web/server.go
// Package web serves the browser chat interface: a WebSocket chat
// endpoint, a health endpoint, and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/metrics"
	"github.com/ragline/ragline/internal/rag"
)

// Pipeline is the web-facing subset of the query pipeline.
type Pipeline interface {
	AnswerStream(ctx context.Context, question string) (<-chan string, <-chan error)
	IndexMetadata() rag.IndexMetadata
}

// Server hosts the chat page, the WebSocket endpoint, and operational
// endpoints on one listener.
type Server struct {
	cfg      *appconfig.Config
	pipeline Pipeline
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer builds a ready-to-start server.
func NewServer(cfg *appconfig.Config, pipeline Pipeline) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-host browser clients only; the server binds locally.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = mux.NewRouter().StrictSlash(true)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/chat", s.handleChat)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses hold the connection open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests to drive the server through
// httptest without a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.LogEvent("[WEB] Listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.LogEvent("[WEB] Shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// handleChat upgrades the connection and hands it to a session.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogEvent("[WEB] WebSocket upgrade failed: %v", err)
		return
	}
	newSession(conn, s.pipeline).run(r.Context())
}

// handleHealth reports the aggregated request metrics. Degraded and
// unhealthy states still answer 200; the payload carries the status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snapshot := metrics.GetInstance().HealthSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logging.LogEvent("[WEB] Write health response: %v", err)
	}
}

// handleIndex serves the single-page chat client.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}
