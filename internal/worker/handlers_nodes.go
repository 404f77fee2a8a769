package worker

import (
	"net/http"

	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/tactical"
	"github.com/thebtf/laboveda/pkg/models"
)

type linkRequest struct {
	SKU     string   `json:"sku"`
	NodeIDs []string `json:"node_ids"`
}

type incinerateRequest struct {
	NodeIDs []string `json:"node_ids"`
}

func (s *Service) handleOrphanNodes(w http.ResponseWriter, r *http.Request) {
	limit := gormdb.ParseLimitParamWithMax(r, 200, 0)
	nodes, err := s.engine.ListOrphanNodes(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// handleIngestNode upserts a node from a feed. Owned nodes refresh their asset.
func (s *Service) handleIngestNode(w http.ResponseWriter, r *http.Request) {
	var node models.Node
	if err := decodeJSON(r, &node); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.IngestNode(r.Context(), &node); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handlePromote creates an asset from an orphan. Without a SKU the next
// identity of the matrix is used.
func (s *Service) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req tactical.PromoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		asset *models.Asset
		err   error
	)
	if req.SKU == "" {
		asset, err = s.engine.PromoteOrphan(r.Context(), req.NodeID, req.MatrixCode)
	} else {
		asset, err = s.engine.PromoteNew(r.Context(), req)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Service) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.engine.LinkExisting(r.Context(), req.NodeIDs, req.SKU)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleIncinerate(w http.ResponseWriter, r *http.Request) {
	var req incinerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.engine.IncinerateNodes(r.Context(), req.NodeIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
