package gorm

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm/clause"

	"github.com/thebtf/laboveda/pkg/models"
)

// GetNodes returns the nodes matching ids, ordered by id. Unknown ids are skipped.
func (s *CatalogStore) GetNodes(ctx context.Context, ids []string) ([]*models.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Node
	err := s.db.WithContext(ctx).
		Where("pin_id IN ?", ids).
		Order("pin_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("get nodes", "node", "", err)
	}
	return toModelNodes(rows), nil
}

// ListNodesByAsset returns the nodes attached to an asset, most seen first.
func (s *CatalogStore) ListNodesByAsset(ctx context.Context, sku string) ([]*models.Node, error) {
	var rows []Node
	err := s.db.WithContext(ctx).
		Where("asset_sku = ?", sku).
		Order("cached_impressions DESC, pin_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("list nodes by asset", "asset", sku, err)
	}
	return toModelNodes(rows), nil
}

// ListOrphanNodes returns unattached nodes ordered by title.
func (s *CatalogStore) ListOrphanNodes(ctx context.Context, limit int) ([]*models.Node, error) {
	var rows []Node
	err := s.db.WithContext(ctx).
		Where("asset_sku IS NULL").
		Order("title ASC, pin_id ASC").
		Limit(clampLimit(limit, 200)).
		Find(&rows).Error
	if err != nil {
		return nil, translate("list orphan nodes", "node", "", err)
	}
	return toModelNodes(rows), nil
}

// UpsertNode inserts a node or refreshes its metadata and counters.
// Ownership of an existing node is left untouched.
func (s *CatalogStore) UpsertNode(ctx context.Context, n *models.Node) error {
	row := &Node{
		PinID:          n.ID,
		AssetSKU:       nullStringPtr(n.AssetSKU),
		Title:          n.Title,
		ImageURL:       n.ImageURL,
		Impressions:    n.Impressions,
		OutboundClicks: n.OutboundClicks,
		Saves:          n.Saves,
		CreatedAt:      n.CreatedAt,
	}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pin_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "image_url",
				"cached_impressions", "cached_outbound_clicks", "cached_pin_clicks",
				"updated_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return translate("upsert node", "node", n.ID, err)
	}
	return nil
}

// AssignNodes sets the owner of the given nodes. An empty sku orphans them.
func (s *CatalogStore) AssignNodes(ctx context.Context, ids []string, sku string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	owner := sql.NullString{String: sku, Valid: sku != ""}
	result := s.db.WithContext(ctx).
		Model(&Node{}).
		Where("pin_id IN ?", ids).
		Updates(map[string]interface{}{
			"asset_sku":  owner,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, translate("assign nodes", "asset", sku, result.Error)
	}
	return result.RowsAffected, nil
}

// OrphanAssetNodes detaches every node owned by sku.
func (s *CatalogStore) OrphanAssetNodes(ctx context.Context, sku string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&Node{}).
		Where("asset_sku = ?", sku).
		Updates(map[string]interface{}{
			"asset_sku":  sql.NullString{},
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, translate("orphan asset nodes", "asset", sku, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOrphanNodes deletes the given nodes that have no owner.
func (s *CatalogStore) DeleteOrphanNodes(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Where("pin_id IN ? AND asset_sku IS NULL", ids).
		Delete(&Node{})
	if result.Error != nil {
		return 0, translate("delete orphan nodes", "node", "", result.Error)
	}
	return result.RowsAffected, nil
}
