package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/laboveda/internal/tactical"
)

func (s *Service) handleListMatrices(w http.ResponseWriter, r *http.Request) {
	matrices, err := s.engine.ListMatrices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matrices)
}

func (s *Service) handleCreateMatrix(w http.ResponseWriter, r *http.Request) {
	var req tactical.CreateMatrixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.engine.CreateMatrix(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Service) handleGetMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMatrix(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Service) handleListMatrixAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.engine.ListAssetsByMatrix(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// handleNextIdentity reserves the next SKU of a matrix.
func (s *Service) handleNextIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.NextIdentity(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Service) handleRecomputeMatrix(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.engine.RecomputeCollection(r.Context(), code); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.engine.GetMatrix(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
