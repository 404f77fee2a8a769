// Package maintenance runs the scheduled recalibration of derived scores.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

// Recalibrator is the engine operation the scheduler drives.
type Recalibrator interface {
	RecalibrateAll(ctx context.Context, opts scoring.Options) (*models.RecalibrationReport, error)
}

// Config tunes the scheduler. A zero Interval disables it.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	Concurrency  int
}

// DefaultInitialDelay lets the service settle before the first run.
const DefaultInitialDelay = time.Minute

// Service handles scheduled recalibration.
type Service struct {
	log             zerolog.Logger
	lastRunTime     time.Time
	engine          Recalibrator
	lastReport      *models.RecalibrationReport
	lastErr         error
	stopCh          chan struct{}
	doneCh          chan struct{}
	cfg             Config
	lastRunDuration time.Duration
	totalRuns       int64
	totalFailures   int64
	mu              sync.Mutex
	runMu           sync.Mutex
	running         bool
}

// NewService creates a new maintenance service.
func NewService(engine Recalibrator, cfg Config, log zerolog.Logger) *Service {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	return &Service{
		engine: engine,
		cfg:    cfg,
		log:    log.With().Str("component", "maintenance").Logger(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the maintenance loop. It blocks until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if s.cfg.Interval <= 0 {
		s.log.Info().Msg("Scheduled recalibration disabled, not starting scheduler")
		return
	}

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("concurrency", s.cfg.Concurrency).
		Msg("Starting recalibration scheduler")

	select {
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	case <-time.After(s.cfg.InitialDelay):
	}
	s.runRecalibration(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Maintenance shutting down due to context cancellation")
			return
		case <-s.stopCh:
			s.log.Info().Msg("Maintenance shutting down due to stop signal")
			return
		case <-ticker.C:
			s.runRecalibration(ctx)
		}
	}
}

// Stop signals the maintenance service to stop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Wait waits for the maintenance service to finish.
func (s *Service) Wait() {
	<-s.doneCh
}

// runRecalibration executes one run. Overlapping runs are skipped.
func (s *Service) runRecalibration(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.log.Warn().Msg("Recalibration already in progress, skipping")
		return
	}
	defer s.runMu.Unlock()

	start := time.Now()
	s.log.Info().Msg("Starting scheduled recalibration")

	report, err := s.engine.RecalibrateAll(ctx, scoring.Options{Concurrency: s.cfg.Concurrency})
	if err != nil {
		s.log.Error().Err(err).Msg("Scheduled recalibration failed")
	}

	s.mu.Lock()
	s.lastRunTime = time.Now()
	s.lastRunDuration = time.Since(start)
	s.lastReport = report
	s.lastErr = err
	s.totalRuns++
	if err != nil || (report != nil && !report.Clean()) {
		s.totalFailures++
	}
	s.mu.Unlock()

	if report != nil {
		s.log.Info().
			Dur("duration", time.Since(start)).
			Int("assets_updated", report.AssetsUpdated).
			Int("matrices_recomputed", report.MatricesRecomputed).
			Int("failed", len(report.FailedAssets)+len(report.FailedMatrices)).
			Msg("Scheduled recalibration completed")
	}
}

// Stats returns scheduler statistics.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]any{
		"enabled":          s.cfg.Interval > 0,
		"interval_minutes": s.cfg.Interval.Minutes(),
		"last_run":         s.lastRunTime,
		"last_duration_ms": s.lastRunDuration.Milliseconds(),
		"total_runs":       s.totalRuns,
		"total_failures":   s.totalFailures,
		"running":          s.running,
	}
	if s.lastReport != nil {
		stats["last_run_id"] = s.lastReport.RunID
		stats["last_assets_updated"] = s.lastReport.AssetsUpdated
		stats["last_clean"] = s.lastReport.Clean()
	}
	if s.lastErr != nil {
		stats["last_error"] = s.lastErr.Error()
	}
	return stats
}

// RunNow triggers an immediate recalibration in the background.
func (s *Service) RunNow(ctx context.Context) {
	go s.runRecalibration(ctx)
}
