// Package worker serves the tactical engine over HTTP for the console and feeds.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/maintenance"
	"github.com/thebtf/laboveda/internal/tactical"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRecalibrateCooldown is the minimum gap between manual recalibrations.
	DefaultRecalibrateCooldown = 30 * time.Second

	// MaxRequestBodySize caps request bodies. Link batches are the largest payload.
	MaxRequestBodySize = 1 << 20

	// Mutation rate limit per client.
	writeRatePerSecond = 20
	writeBurst         = 50
)

// HealthChecker reports the health of the backing store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *gormdb.HealthInfo
}

// Options configures a Service.
type Options struct {
	Health              HealthChecker
	Maintenance         *maintenance.Service
	Log                 zerolog.Logger
	Version             string
	APIToken            string
	Port                int
	Concurrency         int
	RecalibrateCooldown time.Duration
}

// Service is the HTTP front of the tactical engine.
type Service struct {
	startTime   time.Time
	engine      *tactical.Engine
	health      HealthChecker
	maintenance *maintenance.Service
	auth        *TokenAuth
	bulk        *BulkOperationLimiter
	limiter     *PerClientRateLimiter
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	version     string
	port        int
	concurrency int
	wg          sync.WaitGroup
}

// NewService creates the worker service and registers its routes.
func NewService(engine *tactical.Engine, opts Options) *Service {
	cooldown := opts.RecalibrateCooldown
	if cooldown <= 0 {
		cooldown = DefaultRecalibrateCooldown
	}

	svc := &Service{
		version:     opts.Version,
		engine:      engine,
		health:      opts.Health,
		maintenance: opts.Maintenance,
		auth:        NewTokenAuth(opts.APIToken),
		bulk:        NewBulkOperationLimiter(cooldown),
		limiter:     NewPerClientRateLimiter(writeRatePerSecond, writeBurst),
		router:      chi.NewRouter(),
		log:         opts.Log.With().Str("component", "worker").Logger(),
		port:        opts.Port,
		concurrency: opts.Concurrency,
		startTime:   time.Now(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBodySize))
	s.router.Use(RequireJSONContentType)
	s.router.Use(s.auth.Middleware)
	s.router.Use(WriteRateLimit(s.limiter))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Bulk recalibration may outlive the request timeout; it follows client cancellation instead.
	s.router.Post("/api/recalibrate", s.handleRecalibrate)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultHTTPTimeout))

		r.Route("/api/matrices", func(r chi.Router) {
			r.Get("/", s.handleListMatrices)
			r.Post("/", s.handleCreateMatrix)
			r.Get("/{code}", s.handleGetMatrix)
			r.Get("/{code}/assets", s.handleListMatrixAssets)
			r.Post("/{code}/identity", s.handleNextIdentity)
			r.Post("/{code}/recompute", s.handleRecomputeMatrix)
		})

		r.Route("/api/assets", func(r chi.Router) {
			r.Post("/", s.handleCreateAsset)
			r.Get("/search", s.handleSearchAssets)
			r.Get("/recent", s.handleRecentAssets)
			r.Get("/{sku}", s.handleGetAsset)
			r.Delete("/{sku}", s.handleDeleteAsset)
			r.Get("/{sku}/nodes", s.handleAssetNodes)
			r.Patch("/{sku}/links", s.handleUpdateLinks)
			r.Put("/{sku}/revenue", s.handleSetRevenue)
			r.Put("/{sku}/matrix", s.handleMoveAsset)
			r.Post("/{sku}/recompute", s.handleRecomputeAsset)
		})

		r.Route("/api/nodes", func(r chi.Router) {
			r.Post("/", s.handleIngestNode)
			r.Get("/orphans", s.handleOrphanNodes)
			r.Post("/promote", s.handlePromote)
			r.Post("/link", s.handleLink)
			r.Post("/incinerate", s.handleIncinerate)
		})

		r.Post("/api/scoring/preview", s.handleScorePreview)
		r.Get("/api/scoring/config", s.handleScoringConfig)
		r.Get("/api/radar/{kind}", s.handleRadar)
		r.Get("/api/kpis", s.handleKPIs)
	})
}

// Start starts the HTTP server in the background.
func (s *Service) Start() error {
	if s.port <= 0 || s.port > 65535 {
		return fmt.Errorf("invalid worker port %d", s.port)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.log.Info().
		Int("port", s.port).
		Str("version", s.version).
		Bool("auth", s.auth.IsEnabled()).
		Msg("Worker HTTP server started")
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		if err = s.server.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	s.wg.Wait()

	s.log.Info().Msg("Worker service shutdown complete")
	return err
}
