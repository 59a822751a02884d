// Package server provides the HTTP server and routing for Runway.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/events"
	resulthandlers "github.com/aristath/runway/internal/modules/results/handlers"
	"github.com/aristath/runway/internal/modules/simulation"
	simulationhandlers "github.com/aristath/runway/internal/modules/simulation/handlers"
	"github.com/aristath/runway/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	Workers      int
	Simulation   *simulation.Service
	Results      resulthandlers.Repository
	ResultsDB    *database.DB
	EventManager *events.Manager
	Scheduler    *scheduler.Scheduler // optional; its job history is reported in system status
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	eventManager   *events.Manager
	systemHandlers *SystemHandlers
	simulation     *simulationhandlers.Handler
	results        *resulthandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		eventManager:   cfg.EventManager,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.ResultsDB, cfg.Workers, cfg.Scheduler),
		simulation:     simulationhandlers.NewHandler(cfg.Simulation, cfg.Log),
		results:        resulthandlers.NewHandler(cfg.Results, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: event streams and synchronous runs hold the response open
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Streams stay open for the life of the client
		r.Route("/events", func(r chi.Router) {
			r.Get("/stream", NewEventsStreamHandler(s.eventManager.Bus(), s.log).ServeHTTP)
			r.Get("/ws", NewEventsSocketHandler(s.eventManager.Bus(), s.log).ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			})
			s.results.RegisterRoutes(r)
		})

		// Synchronous runs are bounded by the request context, not a fixed timeout
		s.simulation.RegisterRoutes(r)
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
