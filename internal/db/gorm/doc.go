// Package gorm implements db.CatalogStore on top of GORM.
//
// Two drivers are supported: PostgreSQL through pgx and SQLite through the
// pure-Go modernc driver. Schema changes are applied with gormigrate on every
// NewStore call.
//
//	store, err := gorm.NewStore(gorm.Config{
//	    Driver:   gorm.DriverSQLite,
//	    DSN:      "/var/lib/laboveda/catalog.db",
//	    LogLevel: logger.Silent,
//	})
//	catalog := gorm.NewCatalogStore(store)
//
// Integration tests against a real PostgreSQL run behind the integration tag:
//
//	go test -tags integration ./internal/db/gorm
package gorm
