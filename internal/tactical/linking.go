package tactical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thebtf/laboveda/internal/db"
	"github.com/thebtf/laboveda/pkg/models"
)

// maxIdentityAttempts bounds PromoteOrphan's retries on SKU conflicts.
const maxIdentityAttempts = 3

// PromoteRequest asks for a new asset built from one orphan node.
type PromoteRequest struct {
	NodeID      string `json:"node_id"`
	MatrixCode  string `json:"matrix_code"`
	SKU         string `json:"sku"`
	DisplayName string `json:"display_name,omitempty"`
}

// LinkResult reports the outcome of LinkExisting.
type LinkResult struct {
	Asset  *models.Asset `json:"asset"`
	Linked int64         `json:"linked"`
}

// PromoteNew creates an asset in req.MatrixCode from a single orphan node,
// scores it from that node's counters, assigns the node to it and recomputes
// the matrix.
func (e *Engine) PromoteNew(ctx context.Context, req PromoteRequest) (*models.Asset, error) {
	req.MatrixCode = normalizeCode(req.MatrixCode)
	req.SKU = strings.TrimSpace(req.SKU)
	switch {
	case req.MatrixCode == "":
		return nil, models.Invalid("matrix_code", "is required")
	case req.SKU == "":
		return nil, models.Invalid("sku", "is required")
	case req.NodeID == "":
		return nil, models.Invalid("node_id", "is required")
	}

	unlock, err := e.lockKeys(ctx, assetKey(req.SKU), matrixKey(req.MatrixCode))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var asset *models.Asset
	err = e.apply(ctx, mutation{
		op:         "promote node",
		sku:        req.SKU,
		matrixCode: req.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			if _, err := tx.GetMatrix(ctx, req.MatrixCode); err != nil {
				return err
			}
			nodes, err := e.loadOrphans(ctx, tx, []string{req.NodeID}, "")
			if err != nil {
				return err
			}
			node := nodes[0]

			score, tier := e.calc.Evaluate(node.Counters, 0)
			now := e.now()
			name := req.DisplayName
			if name == "" {
				name = node.Title
			}
			if name == "" {
				name = req.SKU
			}
			asset = &models.Asset{
				SKU:         req.SKU,
				MatrixCode:  req.MatrixCode,
				DisplayName: name,
				Tier:        tier,
				Score:       score,
				Traffic:     float64(max(node.OutboundClicks, 0)),
				LastAuditAt: &now,
			}
			if err := tx.CreateAsset(ctx, asset); err != nil {
				return err
			}
			_, err = tx.AssignNodes(ctx, []string{node.ID}, req.SKU)
			return err
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			_, err := e.recomputeCollection(ctx, tx, req.MatrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "promote node", req.SKU, req.MatrixCode, req.NodeID)
		return nil, err
	}

	e.metrics.promoted(ctx)
	e.log.Info().
		Str("sku", asset.SKU).
		Str("matrix", asset.MatrixCode).
		Str("node_id", req.NodeID).
		Float64("score", asset.Score).
		Str("tier", string(asset.Tier)).
		Msg("node promoted")
	return asset, nil
}

// PromoteOrphan generates the next identity in code and promotes nodeID under
// it. A SKU already taken (e.g. created by hand) is skipped by drawing a new
// identity.
func (e *Engine) PromoteOrphan(ctx context.Context, nodeID, code string) (*models.Asset, error) {
	var lastErr error
	for attempt := 0; attempt < maxIdentityAttempts; attempt++ {
		id, err := e.NextIdentity(ctx, code)
		if err != nil {
			return nil, err
		}

		asset, err := e.PromoteNew(ctx, PromoteRequest{
			NodeID:      nodeID,
			MatrixCode:  code,
			SKU:         id.SKU,
			DisplayName: id.DisplayName,
		})
		if err == nil {
			return asset, nil
		}
		if !errors.Is(err, models.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
		e.log.Warn().Str("sku", id.SKU).Str("matrix", code).Msg("generated SKU already taken, retrying")
	}
	return nil, fmt.Errorf("promote orphan after %d attempts: %w", maxIdentityAttempts, lastErr)
}

// LinkExisting attaches orphan nodes to an existing asset, then recomputes
// the asset and its matrix. Nodes already owned by sku are accepted as-is.
func (e *Engine) LinkExisting(ctx context.Context, nodeIDs []string, sku string) (*LinkResult, error) {
	sku = strings.TrimSpace(sku)
	ids := uniqueIDs(nodeIDs)
	if sku == "" {
		return nil, models.Invalid("sku", "is required")
	}
	if len(ids) == 0 {
		return nil, models.Invalid("node_ids", "at least one node is required")
	}

	asset, unlock, err := e.lockAsset(ctx, sku)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.ValidationError{Err: err, Field: "sku", Reason: fmt.Sprintf("asset %q does not exist", sku)}
		}
		return nil, err
	}
	defer unlock()

	var linked int64
	err = e.apply(ctx, mutation{
		op:         "link nodes",
		sku:        sku,
		matrixCode: asset.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			if _, err := e.loadOrphans(ctx, tx, ids, sku); err != nil {
				return err
			}
			n, err := tx.AssignNodes(ctx, ids, sku)
			linked = n
			return err
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			if _, _, err := e.recomputeAsset(ctx, tx, sku); err != nil {
				return err
			}
			_, err := e.recomputeCollection(ctx, tx, asset.MatrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "link nodes", sku, asset.MatrixCode, strings.Join(ids, ","))
		return nil, err
	}

	updated, err := e.store.GetAsset(ctx, sku)
	if err != nil {
		return nil, err
	}

	e.metrics.linked(ctx, linked)
	e.log.Info().
		Str("sku", sku).
		Str("matrix", asset.MatrixCode).
		Strs("node_ids", ids).
		Float64("score", updated.Score).
		Str("tier", string(updated.Tier)).
		Msg("nodes linked")
	return &LinkResult{Asset: updated, Linked: linked}, nil
}

// IncinerateNodes deletes the given nodes if they are orphans and returns how
// many were removed. Owned nodes are left alone.
func (e *Engine) IncinerateNodes(ctx context.Context, nodeIDs []string) (int64, error) {
	ids := uniqueIDs(nodeIDs)
	if len(ids) == 0 {
		return 0, models.Invalid("node_ids", "at least one node is required")
	}

	n, err := e.store.DeleteOrphanNodes(ctx, ids)
	if err != nil {
		e.log.Error().Err(err).Strs("node_ids", ids).Msg("incinerate failed")
		return 0, err
	}
	if skipped := int64(len(ids)) - n; skipped > 0 {
		e.log.Debug().Int64("skipped", skipped).Msg("owned or unknown nodes were not incinerated")
	}
	e.log.Info().Int64("deleted", n).Msg("nodes incinerated")
	return n, nil
}

// IngestNode stores a node from the external feed. If the node is owned, its
// asset and matrix are refreshed so the new counters take effect.
func (e *Engine) IngestNode(ctx context.Context, node *models.Node) error {
	if node == nil || strings.TrimSpace(node.ID) == "" {
		return models.Invalid("id", "is required")
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = e.now()
	}
	if err := e.store.UpsertNode(ctx, node); err != nil {
		return err
	}

	stored, err := e.store.GetNodes(ctx, []string{node.ID})
	if err != nil {
		return err
	}
	if len(stored) == 0 || stored[0].IsOrphan() {
		return nil
	}
	_, err = e.RefreshAsset(ctx, *stored[0].AssetSKU)
	return err
}

// ListOrphanNodes returns unassigned nodes.
func (e *Engine) ListOrphanNodes(ctx context.Context, limit int) ([]*models.Node, error) {
	return e.store.ListOrphanNodes(ctx, limit)
}

// ListNodesByAsset returns the nodes attached to an asset.
func (e *Engine) ListNodesByAsset(ctx context.Context, sku string) ([]*models.Node, error) {
	if _, err := e.store.GetAsset(ctx, sku); err != nil {
		return nil, err
	}
	return e.store.ListNodesByAsset(ctx, sku)
}

// loadOrphans fetches ids and checks each exists and is free. Nodes already
// owned by allowOwner pass the check.
func (e *Engine) loadOrphans(ctx context.Context, st db.CatalogStore, ids []string, allowOwner string) ([]*models.Node, error) {
	nodes, err := st.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	out := make([]*models.Node, 0, len(ids))
	for _, id := range ids {
		n, ok := byID[id]
		if !ok {
			return nil, models.NotFound("node", id)
		}
		if !n.IsOrphan() && *n.AssetSKU != allowOwner {
			return nil, models.Invalid("node_ids", fmt.Sprintf("node %q is already linked to %q", id, *n.AssetSKU))
		}
		out = append(out, n)
	}
	return out, nil
}

func (e *Engine) logFailure(err error, op, sku, matrix, nodes string) {
	if models.NeedsRecalibration(err) {
		// Already logged at Warn by apply.
		return
	}
	ev := e.log.Error()
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
		ev = e.log.Debug()
	}
	ev.Err(err).Str("op", op).Str("sku", sku).Str("matrix", matrix).Str("node_ids", nodes).Msg("operation rejected")
}

// uniqueIDs trims, drops empties and deduplicates while keeping order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
