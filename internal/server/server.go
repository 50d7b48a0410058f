// Package server provides the HTTP status API for the trailing stop.
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

	"github.com/aristath/trailstop/internal/database"
	"github.com/aristath/trailstop/internal/events"
	ledgerhandlers "github.com/aristath/trailstop/internal/modules/ledger/handlers"
	"github.com/aristath/trailstop/internal/modules/stoploss"
)

// FloorReporter exposes the controller's read-only view
type FloorReporter interface {
	Floors() map[string]stoploss.FloorState
	LastReport() *stoploss.IterationReport
}

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	DataDir        string
	Floors         FloorReporter
	LedgerDB       *database.DB            // Optional
	LedgerHandler  *ledgerhandlers.Handler // Optional
	EventManager   *events.Manager
	Broker         BrokerHealth  // Optional, enables the status monitor
	StatusInterval time.Duration // Broker status check interval
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	floors         FloorReporter
	ledgerDB       *database.DB
	ledgerHandler  *ledgerhandlers.Handler
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
	statusMonitor  *StatusMonitor
	statusInterval time.Duration
	startedAt      time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		floors:         cfg.Floors,
		ledgerDB:       cfg.LedgerDB,
		ledgerHandler:  cfg.LedgerHandler,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.LedgerDB),
		statusInterval: cfg.StatusInterval,
		startedAt:      time.Now(),
	}

	if cfg.EventManager != nil {
		s.eventsStream = NewEventsStreamHandler(cfg.EventManager.Bus(), cfg.Log)
		if cfg.Broker != nil {
			s.statusMonitor = NewStatusMonitor(cfg.EventManager, cfg.Broker, cfg.Log)
		}
	}
	if s.statusInterval <= 0 {
		s.statusInterval = 60 * time.Second
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket streams are long-lived; API routes use middleware.Timeout
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
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
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/floors", s.handleFloors)
			r.Get("/iterations/last", s.handleLastIteration)
			r.Get("/system", s.systemHandlers.HandleSystemStatus)

			if s.ledgerHandler != nil {
				s.ledgerHandler.RegisterRoutes(r)
			}
		})
	})

	// Websocket route stays outside the timeout and compression group
	if s.eventsStream != nil {
		s.router.Get("/api/events/ws", s.eventsStream.ServeHTTP)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and background monitors.
// It blocks until the server stops; http.ErrServerClosed is returned after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.statusMonitor != nil {
		s.statusMonitor.Start(ctx, s.statusInterval)
		s.log.Info().Dur("interval", s.statusInterval).Msg("Status monitor started")
	}

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
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

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
