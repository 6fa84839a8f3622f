package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/opendatama/rejtracts/internal/rej"
	"github.com/opendatama/rejtracts/internal/web/handlers"
	"github.com/opendatama/rejtracts/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	table      *handlers.Table
	httpServer *http.Server
	router     *mux.Router
	logger     zerolog.Logger
}

// NewServer creates a server browsing the joined dataset
func NewServer(config *Config, ds *rej.Dataset, logger zerolog.Logger) *Server {
	server := &Server{
		config: config,
		table:  handlers.NewTable(ds),
		logger: logger,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	handlerConfig := &handlers.Config{
		PerPage:       s.config.PerPage,
		ExportEnabled: s.config.Features.ExportEnabled,
	}

	apiHandler := &handlers.APIHandler{Table: s.table, Config: handlerConfig, Logger: s.logger}
	exportHandler := handlers.NewExportHandler(apiHandler)
	pageHandler := &handlers.PageHandler{Table: s.table, Config: handlerConfig, Title: s.config.Title}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/columns", apiHandler.GetColumns).Methods("GET", "OPTIONS")
	api.HandleFunc("/rows", apiHandler.ListRows).Methods("GET", "OPTIONS")
	if s.config.Features.ExportEnabled {
		api.HandleFunc("/export.csv", exportHandler.ExportCSV).Methods("GET")
		api.HandleFunc("/export.geojson", exportHandler.ExportGeoJSON).Methods("GET")
	}

	s.router.HandleFunc("/", pageHandler.Index).Methods("GET")
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.logger))

	// Authentication applies to API routes only
	api.Use(middleware.Authentication(s.config.Auth.APIKey))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", "http://"+s.httpServer.Addr).Int("rows", len(s.table.Rows)).Msg("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info().Msg("Server stopped")
	return nil
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}
