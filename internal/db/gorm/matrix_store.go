package gorm

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/thebtf/laboveda/pkg/models"
)

// nextSequenceSQL advances the per-matrix counter in one statement. The first
// call for a matrix seeds the counter from its current member count.
const nextSequenceSQL = `INSERT INTO matrix_sequences (matrix_code, last_value)
VALUES (?, (SELECT COUNT(*) FROM business_assets WHERE primary_matrix_id = ?) + 1)
ON CONFLICT (matrix_code) DO UPDATE SET last_value = matrix_sequences.last_value + 1
RETURNING last_value`

// GetMatrix retrieves a matrix by code.
func (s *CatalogStore) GetMatrix(ctx context.Context, code string) (*models.Matrix, error) {
	var row Matrix
	err := s.db.WithContext(ctx).Where("matrix_code = ?", code).First(&row).Error
	if err != nil {
		return nil, translate("get matrix", "matrix", code, err)
	}
	return toModelMatrix(&row), nil
}

// ListMatrices returns every matrix, highest summed score first.
func (s *CatalogStore) ListMatrices(ctx context.Context) ([]*models.Matrix, error) {
	var rows []Matrix
	err := s.db.WithContext(ctx).Order("total_score DESC, matrix_code ASC").Find(&rows).Error
	if err != nil {
		return nil, translate("list matrices", "matrix", "", err)
	}

	out := make([]*models.Matrix, len(rows))
	for i := range rows {
		out[i] = toModelMatrix(&rows[i])
	}
	return out, nil
}

// ListMatrixCodes returns every matrix code in ascending order.
func (s *CatalogStore) ListMatrixCodes(ctx context.Context) ([]string, error) {
	ctx, cancel := bulkContext(ctx)
	defer cancel()

	var codes []string
	err := s.db.WithContext(ctx).
		Model(&Matrix{}).
		Order("matrix_code ASC").
		Pluck("matrix_code", &codes).Error
	if err != nil {
		return nil, translate("list matrix codes", "matrix", "", err)
	}
	return codes, nil
}

// CreateMatrix inserts a new matrix with zeroed rollups.
func (s *CatalogStore) CreateMatrix(ctx context.Context, m *models.Matrix) error {
	kind := m.Kind
	if kind == "" {
		kind = models.MatrixPrimary
	}
	row := &Matrix{
		Code:       m.Code,
		VisualName: m.VisualName,
		Type:       string(kind),
		CreatedAt:  m.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return translate("create matrix", "matrix", m.Code, err)
	}
	m.Kind = kind
	m.CreatedAt = row.CreatedAt
	return nil
}

// UpdateMatrixRollup overwrites the derived metrics of a matrix.
func (s *CatalogStore) UpdateMatrixRollup(ctx context.Context, code string, rollup models.MatrixRollup) error {
	auditedAt := rollup.AuditedAt
	if auditedAt.IsZero() {
		auditedAt = time.Now()
	}
	result := s.db.WithContext(ctx).
		Model(&Matrix{}).
		Where("matrix_code = ?", code).
		Updates(map[string]interface{}{
			"asset_count":         rollup.AssetCount,
			"total_score":         rollup.TotalScore,
			"total_traffic_score": rollup.TotalTraffic,
			"total_revenue_score": rollup.TotalRevenue,
			"last_audit_at":       auditedAt,
		})
	if result.Error != nil {
		return translate("update matrix rollup", "matrix", code, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NotFound("matrix", code)
	}
	return nil
}

// NextSequence atomically advances and returns the asset sequence of a matrix.
func (s *CatalogStore) NextSequence(ctx context.Context, code string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Raw(nextSequenceSQL, code, code).Scan(&value).Error
	if err != nil {
		if constraintKind(err) == "foreign_key" {
			return 0, models.NotFound("matrix", code)
		}
		return 0, translate("next sequence", "matrix", code, err)
	}
	return value, nil
}
