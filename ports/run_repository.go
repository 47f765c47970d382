package ports

import (
	"context"
	"encoding/json"

	"github.com/leibatt/latency-visual-search/domain/core"
)

// RunRecord is one persisted analysis run: the seed, the exact inputs it
// ran over, and the full result artifacts as JSON.
type RunRecord struct {
	ID                    core.RunID              `json:"id" db:"id"`
	Seed                  int64                   `json:"seed" db:"seed"`
	PilotFingerprint      core.DatasetFingerprint `json:"pilot_fingerprint" db:"pilot_fingerprint"`
	ContinuousFingerprint core.DatasetFingerprint `json:"continuous_fingerprint" db:"continuous_fingerprint"`
	Results               json.RawMessage         `json:"results" db:"results"`
	CreatedAt             core.Timestamp          `json:"created_at" db:"created_at"`
}

// RunSummary is a listing row for persisted runs.
type RunSummary struct {
	ID        core.RunID     `json:"id" db:"id"`
	Seed      int64          `json:"seed" db:"seed"`
	CreatedAt core.Timestamp `json:"created_at" db:"created_at"`
}

// RunRepository persists analysis runs so a reported result can always be
// traced back to its seed and input fingerprints.
type RunRepository interface {
	Save(ctx context.Context, run *RunRecord) error
	GetByID(ctx context.Context, id core.RunID) (*RunRecord, error)
	List(ctx context.Context, limit, offset int) ([]RunSummary, error)
}
