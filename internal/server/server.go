package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"interiorDesignAi/internal/logging"
	"interiorDesignAi/internal/session"
)

// New constructs the HTTP server with routes and middleware.
func New(port string, sessionHandler session.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     Router(sessionHandler, logger),
		ReadTimeout: 30 * time.Second,
		// Analyses and image generations block for minutes and /events
		// streams indefinitely, so responses carry no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server ready", zap.String("addr", srv.Addr))
	return srv
}

// Router wires middleware, the health probe and the API routes.
func Router(sessionHandler session.Handler, logger *zap.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", sessionHandler.Register)
	return router
}
