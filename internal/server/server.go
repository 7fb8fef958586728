// Package server provides the HTTP server and routing for the arena.
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

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/database"
	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/events"
	"github.com/aristath/arena/internal/modules/arena"
	arenahandlers "github.com/aristath/arena/internal/modules/arena/handlers"
	"github.com/aristath/arena/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/arena/internal/modules/marketdata/handlers"
	"github.com/aristath/arena/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/arena/internal/modules/portfolio/handlers"
	"github.com/aristath/arena/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/arena/internal/modules/rebalancing/handlers"
	"github.com/aristath/arena/internal/modules/risk"
	riskhandlers "github.com/aristath/arena/internal/modules/risk/handlers"
	"github.com/aristath/arena/internal/modules/trading"
	tradinghandlers "github.com/aristath/arena/internal/modules/trading/handlers"
	"github.com/aristath/arena/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	LedgerDB    *database.DB
	PortfolioDB *database.DB
	Arena       *arena.Arena
	Market      *marketdata.Service
	Risk        *risk.Manager
	Bus         *events.Bus
	Scheduler   *scheduler.Scheduler
	Trades      *trading.TradeRepository
	Snapshots   *portfolio.SnapshotRepository
	Reports     *rebalancing.ReportRepository
	Clock       domain.Clock
	Port        int
	DevMode     bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
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
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	systemHandlers := NewSystemHandlers(
		s.log,
		s.cfg.Scheduler,
		map[string]*database.DB{
			"ledger":    s.cfg.LedgerDB,
			"portfolio": s.cfg.PortfolioDB,
		},
	)
	eventsStream := NewEventsStreamHandler(s.cfg.Bus, s.log)

	s.router.Route("/api", func(r chi.Router) {
		// Websocket event stream; registered first so the upgrade request
		// never hits the compression middleware path.
		r.Get("/events/ws", eventsStream.ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
			r.Get("/jobs", systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}", systemHandlers.HandleTriggerJob)
		})

		marketdatahandlers.NewHandler(s.cfg.Market, s.log).RegisterRoutes(r)
		portfoliohandlers.NewHandler(s.cfg.Arena, s.cfg.Snapshots, s.log).RegisterRoutes(r)
		riskhandlers.NewHandler(s.cfg.Risk, s.cfg.Arena, s.cfg.Market, s.cfg.Cfg.Risk.VaRConfidence, s.log).RegisterRoutes(r)
		rebalancinghandlers.NewHandler(s.cfg.Arena, s.cfg.Arena, s.cfg.Reports, s.log).RegisterRoutes(r)
		tradinghandlers.NewHandler(s.cfg.Trades, s.cfg.Clock, s.log).RegisterRoutes(r)
		arenahandlers.NewHandler(s.cfg.Arena, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
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
