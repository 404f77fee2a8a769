// Package db defines the persistence interfaces the tactical core depends on.
package db

import (
	"context"

	"github.com/thebtf/laboveda/pkg/models"
)

// MatrixReader defines read operations for matrices.
type MatrixReader interface {
	GetMatrix(ctx context.Context, code string) (*models.Matrix, error)
	ListMatrices(ctx context.Context) ([]*models.Matrix, error)
	ListMatrixCodes(ctx context.Context) ([]string, error)
}

// MatrixWriter defines write operations for matrices.
type MatrixWriter interface {
	CreateMatrix(ctx context.Context, m *models.Matrix) error
	UpdateMatrixRollup(ctx context.Context, code string, rollup models.MatrixRollup) error
	// NextSequence atomically advances and returns the per-matrix asset sequence.
	NextSequence(ctx context.Context, code string) (int64, error)
}

// AssetReader defines read operations for assets.
type AssetReader interface {
	GetAsset(ctx context.Context, sku string) (*models.Asset, error)
	ListAssetsByMatrix(ctx context.Context, code string) ([]*models.Asset, error)
	ListAssetRefs(ctx context.Context) ([]models.AssetRef, error)
	CountAssetsByMatrix(ctx context.Context, code string) (int64, error)
	SearchAssets(ctx context.Context, query string, limit int) ([]*models.Asset, error)
	ListRecentAssets(ctx context.Context, limit int) ([]*models.Asset, error)
}

// AssetWriter defines write operations for assets.
type AssetWriter interface {
	CreateAsset(ctx context.Context, a *models.Asset) error
	UpdateAssetScore(ctx context.Context, sku string, score models.AssetScore) error
	UpdateAssetLinks(ctx context.Context, sku string, links models.AssetLinks) error
	SetAssetRevenue(ctx context.Context, sku string, revenue float64) error
	MoveAsset(ctx context.Context, sku, matrixCode string) error
	DeleteAsset(ctx context.Context, sku string) error
}

// NodeReader defines read operations for signal-nodes.
type NodeReader interface {
	GetNodes(ctx context.Context, ids []string) ([]*models.Node, error)
	ListNodesByAsset(ctx context.Context, sku string) ([]*models.Node, error)
	ListOrphanNodes(ctx context.Context, limit int) ([]*models.Node, error)
}

// NodeWriter defines write operations for signal-nodes.
type NodeWriter interface {
	UpsertNode(ctx context.Context, n *models.Node) error
	// AssignNodes sets the owner of the given nodes; an empty sku orphans them.
	AssignNodes(ctx context.Context, ids []string, sku string) (int64, error)
	// OrphanAssetNodes detaches every node owned by sku.
	OrphanAssetNodes(ctx context.Context, sku string) (int64, error)
	// DeleteOrphanNodes deletes the given nodes if they have no owner.
	DeleteOrphanNodes(ctx context.Context, ids []string) (int64, error)
}

// RadarReader defines the operator radar and KPI queries.
type RadarReader interface {
	Radar(ctx context.Context, kind models.RadarKind, matrixCode string, limit int) ([]models.RadarItem, error)
	GlobalKPIs(ctx context.Context) (*models.GlobalKPIs, error)
}

// CatalogStore combines every operation the core needs.
type CatalogStore interface {
	MatrixReader
	MatrixWriter
	AssetReader
	AssetWriter
	NodeReader
	NodeWriter
	RadarReader

	// RunInTx runs fn against a transactional view of the store. If Atomic
	// reports false the writes made by fn are not rolled back on error.
	RunInTx(ctx context.Context, fn func(tx CatalogStore) error) error
	Atomic() bool
}
