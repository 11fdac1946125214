// Package store persists trial records produced by the benchmark harness.
package store

import (
	"context"
	"time"
)

// Store defines persistence operations for trial records.
type Store interface {
	Init(ctx context.Context) error
	SaveTrial(ctx context.Context, record TrialRecord) error
	GetTrial(ctx context.Context, id string) (TrialRecord, bool, error)
	// ListTrials returns the records of target (all targets when empty),
	// oldest first.
	ListTrials(ctx context.Context, target string) ([]TrialRecord, error)
}

// VersionedRecord tags a persisted payload with the codec it was written
// with.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TrialRecord is the outcome of one seeded optimization run. Every series
// is a plain slice indexed by evaluation or by iteration.
type TrialRecord struct {
	VersionedRecord

	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Strategy  string    `json:"strategy"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"created_at"`

	InitSamples int `json:"init_samples"`
	Budget      int `json:"budget"`

	// Regret is value - optimum per evaluation, BestRegret its running
	// minimum.
	Regret     []float64 `json:"regret"`
	BestRegret []float64 `json:"best_regret"`

	BestValue  float64   `json:"best_value"`
	BestParams []float64 `json:"best_params"`

	Samples     [][]float64 `json:"samples"`
	Means       []float64   `json:"means"`
	Variances   []float64   `json:"variances"`
	Acquisition []float64   `json:"acquisition"`

	IterationSeconds []float64 `json:"iteration_seconds"`
	ElapsedSeconds   float64   `json:"elapsed_seconds"`
}

// FinalRegret returns the last best-so-far regret, or zero for an
// empty record.
func (r TrialRecord) FinalRegret() float64 {
	if len(r.BestRegret) == 0 {
		return 0
	}

	return r.BestRegret[len(r.BestRegret)-1]
}
