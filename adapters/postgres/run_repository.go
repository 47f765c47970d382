package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/internal/errors"
	"github.com/leibatt/latency-visual-search/ports"
)

// Schema creates the analysis_runs table. Applied at startup when a
// database is configured; IF NOT EXISTS keeps it idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	seed BIGINT NOT NULL,
	pilot_fingerprint TEXT NOT NULL,
	continuous_fingerprint TEXT NOT NULL,
	results JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// runRepository implements ports.RunRepository on Postgres.
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository and ensures the schema exists.
func NewRunRepository(db *sqlx.DB) (ports.RunRepository, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, errors.Wrap(err, "failed to ensure analysis_runs schema")
	}
	return &runRepository{db: db}, nil
}

// Save inserts a new analysis run.
func (r *runRepository) Save(ctx context.Context, run *ports.RunRecord) error {
	query := `INSERT INTO analysis_runs (
		id, seed, pilot_fingerprint, continuous_fingerprint, results, created_at
	) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(), run.Seed,
		run.PilotFingerprint.String(), run.ContinuousFingerprint.String(),
		[]byte(run.Results), run.CreatedAt.Time(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save analysis run")
	}
	return nil
}

// GetByID retrieves one analysis run.
func (r *runRepository) GetByID(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	query := `SELECT id, seed, pilot_fingerprint, continuous_fingerprint, results, created_at
		FROM analysis_runs WHERE id = $1`

	var (
		rec       ports.RunRecord
		runID     string
		pilotFp   string
		contFp    string
		results   []byte
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(
		&runID, &rec.Seed, &pilotFp, &contFp, &results, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("analysis run " + id.String())
		}
		return nil, errors.Wrap(err, "failed to get analysis run")
	}

	rec.ID = core.RunID(runID)
	rec.PilotFingerprint = core.DatasetFingerprint(pilotFp)
	rec.ContinuousFingerprint = core.DatasetFingerprint(contFp)
	rec.Results = results
	rec.CreatedAt = core.NewTimestamp(createdAt)
	return &rec, nil
}

// List returns run summaries, newest first.
func (r *runRepository) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, seed, created_at FROM analysis_runs
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list analysis runs")
	}
	defer rows.Close()

	var out []ports.RunSummary
	for rows.Next() {
		var (
			id        string
			seed      int64
			createdAt time.Time
		)
		if err := rows.Scan(&id, &seed, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan run summary")
		}
		out = append(out, ports.RunSummary{
			ID:        core.RunID(id),
			Seed:      seed,
			CreatedAt: core.NewTimestamp(createdAt),
		})
	}
	return out, rows.Err()
}
