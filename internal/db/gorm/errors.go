package gorm

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	msqlite "modernc.org/sqlite"

	"github.com/thebtf/laboveda/pkg/models"
)

// Driver error codes we map to validation failures.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"

	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// translate maps a driver error into the catalog error taxonomy. entity and
// key describe the record addressed by the call and are only used for
// not-found errors.
func translate(op, entity, key string, err error) error {
	if err == nil {
		return nil
	}

	var (
		nf  *models.NotFoundError
		ve  *models.ValidationError
		pe  *models.PersistenceError
		ise *models.InconsistentStateError
	)
	if errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &ise) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NotFound(entity, key)
	}

	switch constraintKind(err) {
	case "foreign_key":
		return &models.ValidationError{Err: err, Field: entity, Reason: "referenced record does not exist"}
	case "unique":
		return &models.ValidationError{Err: errors.Join(models.ErrDuplicate, err), Field: entity, Reason: "already exists"}
	case "check":
		return &models.ValidationError{Err: err, Field: entity, Reason: "value rejected by constraint"}
	}

	return &models.PersistenceError{Op: op, Err: err}
}

// constraintKind classifies constraint violations from either driver.
func constraintKind(err error) string {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return "foreign_key"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "unique"
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return "check"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return "foreign_key"
		case pgUniqueViolation:
			return "unique"
		case pgCheckViolation:
			return "check"
		}
		return ""
	}

	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintForeignKey:
			return "foreign_key"
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return "unique"
		case sqliteConstraintCheck:
			return "check"
		}
	}
	return ""
}
