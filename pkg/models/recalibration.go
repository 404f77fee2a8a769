package models

import "time"

// FailedItem records one asset or matrix that could not be recomputed.
type FailedItem struct {
	Key   string `json:"key" yaml:"key"`
	Error string `json:"error" yaml:"error"`
}

// RecalibrationReport summarizes a bulk recalibration run.
type RecalibrationReport struct {
	StartedAt          time.Time     `json:"started_at" yaml:"started_at"`
	RunID              string        `json:"run_id" yaml:"run_id"`
	FailedAssets       []FailedItem  `json:"failed_assets,omitempty" yaml:"failed_assets,omitempty"`
	FailedMatrices     []FailedItem  `json:"failed_matrices,omitempty" yaml:"failed_matrices,omitempty"`
	TotalAssets        int           `json:"total_assets" yaml:"total_assets"`
	AssetsUpdated      int           `json:"assets_updated" yaml:"assets_updated"`
	MatricesRecomputed int           `json:"matrices_recomputed" yaml:"matrices_recomputed"`
	Duration           time.Duration `json:"duration_ns" yaml:"duration"`
	Canceled           bool          `json:"canceled" yaml:"canceled"`
}

// Clean reports whether the run finished without failures or cancellation.
func (r *RecalibrationReport) Clean() bool {
	return !r.Canceled && len(r.FailedAssets) == 0 && len(r.FailedMatrices) == 0
}
