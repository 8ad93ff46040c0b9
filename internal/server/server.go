// Package server provides the HTTP server and routing for the scoring
// engine.
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

	"github.com/geobukschool/jungsi-engine/internal/database"
	"github.com/geobukschool/jungsi-engine/internal/modules/admissions"
	"github.com/geobukschool/jungsi-engine/internal/modules/batch"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
	"github.com/geobukschool/jungsi-engine/internal/modules/results"
)

// Config holds server configuration
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	ExamYear     int
	FormulaPath  string
	Databases    map[string]*database.DB
	Registry     *formula.Registry
	Orchestrator *batch.Orchestrator
	ResultsRepo  *results.Repository
	CatalogRepo  *admissions.Repository
	Hub          *EventsHub
}

// Server represents the HTTP server
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	examYear     int
	formulaPath  string
	databases    map[string]*database.DB
	registry     *formula.Registry
	orchestrator *batch.Orchestrator
	resultsRepo  *results.Repository
	catalogRepo  *admissions.Repository
	hub          *EventsHub
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		examYear:     cfg.ExamYear,
		formulaPath:  cfg.FormulaPath,
		databases:    cfg.Databases,
		registry:     cfg.Registry,
		orchestrator: cfg.Orchestrator,
		resultsRepo:  cfg.ResultsRepo,
		catalogRepo:  cfg.CatalogRepo,
		hub:          cfg.Hub,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/batch", func(r chi.Router) {
			r.Post("/run", s.handleBatchRun)
			r.Get("/status", s.handleBatchStatus)
			// Live run progress feed (websocket) - no timeout middleware here
			r.Get("/progress/ws", s.hub.ServeHTTP)
		})

		r.Route("/results", func(r chi.Router) {
			r.Get("/{studentID}", s.handleStudentResults)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/units", s.handleCatalogUnits)
			r.Post("/cuts", s.handleCatalogCutImport)
		})

		r.Route("/registry", func(r chi.Router) {
			r.Get("/", s.handleRegistryInfo)
			r.Post("/reload", s.handleRegistryReload)
		})
	})
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
