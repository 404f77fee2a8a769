package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/laboveda/internal/db"
)

// CatalogStore provides matrix, asset and signal-node persistence.
// Methods are split across matrix_store.go, asset_store.go, node_store.go
// and radar_store.go.
type CatalogStore struct {
	db   *gorm.DB
	inTx bool
}

var _ db.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a new catalog store.
func NewCatalogStore(store *Store) *CatalogStore {
	return &CatalogStore{db: store.DB}
}

// RunInTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *CatalogStore) RunInTx(ctx context.Context, fn func(tx db.CatalogStore) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogStore{db: tx, inTx: true})
	})
	return translate("transaction", "", "", err)
}

// Atomic reports true: writes made inside RunInTx roll back together.
func (s *CatalogStore) Atomic() bool {
	return true
}
