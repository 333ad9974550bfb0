package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/metrics"
)

// APIServer serves the dashboard's cached state over HTTP and websocket.
type APIServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(handler *APIHandler, hub *WSHub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", handler.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/status", handler.StatusHandler)
			r.Get("/holdings", handler.HoldingsHandler)
			r.Get("/trades", handler.TradesHandler)
			r.Get("/watchlists", handler.WatchlistsHandler)
			r.Get("/watchlists/{id}", handler.WatchlistHandler)
		})
	})

	return r
}

// NewAPIServer creates a new APIServer on port.
func NewAPIServer(port int, router http.Handler, logger *zap.Logger) *APIServer {
	return &APIServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("api-server"),
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting web server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("Web server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping web server...")
	return s.server.Shutdown(ctx)
}
