package tactical

import (
	"context"
	"fmt"

	"github.com/thebtf/laboveda/pkg/models"
)

// NextIdentity reserves the next asset identity in a matrix. The sequence is
// advanced atomically by the store, so concurrent callers never share a value;
// a reserved value that is never used leaves a gap.
func (e *Engine) NextIdentity(ctx context.Context, code string) (*models.Identity, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, models.Invalid("matrix_code", "is required")
	}

	matrix, err := e.store.GetMatrix(ctx, code)
	if err != nil {
		return nil, err
	}

	seq, err := e.store.NextSequence(ctx, code)
	if err != nil {
		return nil, err
	}

	id := FormatIdentity(matrix, seq)
	e.metrics.identityIssued(ctx)
	e.log.Debug().Str("matrix", code).Int64("sequence", seq).Str("sku", id.SKU).Msg("identity issued")
	return id, nil
}

// FormatIdentity builds the SKU and display name for a sequence number.
// The sequence is zero-padded to three digits; the display name carries its last two.
func FormatIdentity(matrix *models.Matrix, seq int64) *models.Identity {
	padded := fmt.Sprintf("%03d", seq)
	return &models.Identity{
		SKU:         fmt.Sprintf("SKU-%s-%s", matrix.Code, padded),
		DisplayName: fmt.Sprintf("%s %s", matrix.DisplayName(), padded[len(padded)-2:]),
		MatrixCode:  matrix.Code,
		Sequence:    seq,
	}
}
