// Package api provides the HTTP management surface: onboarding new
// accounts, inspecting job configs and runs, and triggering dispatch
// cycles by hand.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Itoktsnhc/stat.itok/internal/auth"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/dispatcher"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
)

// StatInkVerifier checks an upload API key before accepting a config.
type StatInkVerifier interface {
	VerifyAPIKey(ctx context.Context, apiKey string) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	configs    *storage.JobConfigRepository
	runs       *storage.JobRunRepository
	sessions   *auth.SessionManager
	statink    StatInkVerifier
	dispatcher *dispatcher.Dispatcher
	logger     *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(
	cfg *config.ServerConfig,
	configs *storage.JobConfigRepository,
	runs *storage.JobRunRepository,
	sessions *auth.SessionManager,
	statink StatInkVerifier,
	disp *dispatcher.Dispatcher,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		configs:    configs,
		runs:       runs,
		sessions:   sessions,
		statink:    statink,
		dispatcher: disp,
		logger:     logger,
	}

	s.setupRouter(cfg)
	return s
}

func (s *Server) setupRouter(cfg *config.ServerConfig) {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.setupRoutes()

	// CORS wraps the router itself so preflight requests get answered
	// even when no method matches
	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/new_verify", s.handleNewVerify).Methods(http.MethodPost)
	api.HandleFunc("/job_configs", s.handleUpsertJobConfig).Methods(http.MethodPost)
	api.HandleFunc("/job_configs", s.handleListJobConfigs).Methods(http.MethodGet)
	api.HandleFunc("/job_configs/{id}", s.handleGetJobConfig).Methods(http.MethodGet)
	api.HandleFunc("/job_configs/{id}/enable", s.handleSetEnabled(true)).Methods(http.MethodPost)
	api.HandleFunc("/job_configs/{id}/disable", s.handleSetEnabled(false)).Methods(http.MethodPost)
	api.HandleFunc("/job_configs/{id}/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/tasks", s.handleListRunTasks).Methods(http.MethodGet)
	api.HandleFunc("/dispatch", s.handleDispatch).Methods(http.MethodPost)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.handler
}

// Start begins serving; blocks until the server stops.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
