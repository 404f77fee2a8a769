package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/tactical"
	"github.com/thebtf/laboveda/pkg/models"
)

type revenueRequest struct {
	Revenue *float64 `json:"revenue"`
}

type moveRequest struct {
	MatrixCode string `json:"matrix_code"`
}

func (s *Service) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req tactical.CreateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	asset, err := s.engine.CreateAsset(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Service) handleSearchAssets(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParamWithMax(r, 20, 200)
	assets, err := s.engine.SearchAssets(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Service) handleRecentAssets(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParamWithMax(r, 20, 200)
	assets, err := s.engine.ListRecentAssets(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Service) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.engine.GetAsset(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Service) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAsset(r.Context(), chi.URLParam(r, "sku")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleAssetNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.engine.ListNodesByAsset(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Service) handleUpdateLinks(w http.ResponseWriter, r *http.Request) {
	var links models.AssetLinks
	if err := decodeJSON(r, &links); err != nil {
		writeError(w, r, err)
		return
	}
	asset, err := s.engine.UpdateAssetLinks(r.Context(), chi.URLParam(r, "sku"), links)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Service) handleSetRevenue(w http.ResponseWriter, r *http.Request) {
	var req revenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Revenue == nil {
		writeError(w, r, models.Invalid("revenue", "required"))
		return
	}
	asset, err := s.engine.SetAssetRevenue(r.Context(), chi.URLParam(r, "sku"), *req.Revenue)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Service) handleMoveAsset(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	asset, err := s.engine.MoveAsset(r.Context(), chi.URLParam(r, "sku"), req.MatrixCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleRecomputeAsset reruns the asset aggregator and its matrix rollup.
func (s *Service) handleRecomputeAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.engine.RefreshAsset(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}
