package tactical

import (
	"context"
	"regexp"
	"strings"

	"github.com/thebtf/laboveda/pkg/models"
)

// matrixCodePattern keeps codes usable inside a SKU.
var matrixCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,31}$`)

// CreateMatrixRequest describes a new matrix.
type CreateMatrixRequest struct {
	Code       string            `json:"code"`
	VisualName string            `json:"visual_name"`
	Kind       models.MatrixKind `json:"kind,omitempty"`
}

// CreateMatrix registers a matrix with zeroed rollups. Codes are upper-cased.
func (e *Engine) CreateMatrix(ctx context.Context, req CreateMatrixRequest) (*models.Matrix, error) {
	code := normalizeCode(req.Code)
	if code == "" {
		return nil, models.Invalid("code", "is required")
	}
	if !matrixCodePattern.MatchString(code) {
		return nil, models.Invalid("code", "must be 1-32 letters, digits, dashes or underscores")
	}
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, models.Invalid("kind", "must be PRIMARY or SECONDARY")
	}

	m := &models.Matrix{
		Code:       code,
		VisualName: strings.TrimSpace(req.VisualName),
		Kind:       req.Kind,
		CreatedAt:  e.now(),
	}
	if err := e.store.CreateMatrix(ctx, m); err != nil {
		e.logFailure(err, "create matrix", "", code, "")
		return nil, err
	}

	e.log.Info().Str("matrix", code).Str("kind", string(m.Kind)).Msg("matrix created")
	return m, nil
}

// GetMatrix returns a matrix by code.
func (e *Engine) GetMatrix(ctx context.Context, code string) (*models.Matrix, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, models.Invalid("code", "is required")
	}
	return e.store.GetMatrix(ctx, code)
}

// normalizeCode puts a matrix code in its stored form.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ListMatrices returns every matrix, highest summed score first.
func (e *Engine) ListMatrices(ctx context.Context) ([]*models.Matrix, error) {
	return e.store.ListMatrices(ctx)
}
