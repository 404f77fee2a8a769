package worker

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

type previewRequest struct {
	models.Counters
	Revenue float64 `json:"revenue"`
}

type recalibrateRequest struct {
	Concurrency int `json:"concurrency"`
}

// handleHealth reports service, database and scheduler state.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	if s.health != nil {
		info := s.health.HealthCheck(r.Context())
		resp["database"] = info
		if info.Status == "unhealthy" {
			resp["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	if s.maintenance != nil {
		resp["recalibration"] = s.maintenance.Stats()
	}
	resp["rate_limit"] = s.limiter.Stats()
	writeJSON(w, status, resp)
}

func (s *Service) handleScorePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.ScorePreview(req.Counters, req.Revenue))
}

func (s *Service) handleScoringConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ScoringConfig())
}

// handleRecalibrate runs a full recalibration in the request. A client
// disconnect cancels the run.
func (s *Service) handleRecalibrate(w http.ResponseWriter, r *http.Request) {
	var req recalibrateRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Concurrency < 0 {
		writeError(w, r, models.Invalid("concurrency", "must not be negative"))
		return
	}
	if req.Concurrency == 0 {
		req.Concurrency = s.concurrency
	}

	if !s.bulk.CanExecute() {
		wait := s.bulk.CooldownRemaining()
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		writeProblem(w, r, http.StatusTooManyRequests, "recalibration cooling down, retry in "+wait.Round(time.Second).String())
		return
	}

	report, err := s.engine.RecalibrateAll(r.Context(), scoring.Options{Concurrency: req.Concurrency})
	if err != nil {
		if report != nil && errors.Is(err, context.Canceled) {
			writeJSON(w, http.StatusServiceUnavailable, report)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleRadar(w http.ResponseWriter, r *http.Request) {
	kind := models.RadarKind(chi.URLParam(r, "kind"))
	limit := gormdb.ParseLimitParamWithMax(r, 50, 500)
	items, err := s.engine.Radar(r.Context(), kind, r.URL.Query().Get("matrix"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Service) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.engine.KPIs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}
