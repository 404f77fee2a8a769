package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Catalog tables (matrix -> asset -> node)
		{
			ID: "001_catalog_tables",
			Migrate: func(tx *gorm.DB) error {
				// Order matters: foreign keys point upwards.
				if err := tx.AutoMigrate(&Matrix{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Asset{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Node{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("pinterest_nodes", "business_assets", "matrix_registry")
			},
		},

		// Migration 002: Per-matrix asset sequence used for identity generation
		{
			ID: "002_matrix_sequences",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&MatrixSequence{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("matrix_sequences")
			},
		},

		// Migration 003: Partial index for orphan scans
		{
			ID: "003_orphan_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_nodes_orphan_title
					ON pinterest_nodes (title, pin_id) WHERE asset_sku IS NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_nodes_orphan_title").Error
			},
		},
	})

	return m.Migrate()
}
