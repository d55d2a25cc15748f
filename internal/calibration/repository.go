package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Repository persists calibration runs and tracks which one serves traffic.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calibration repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RunRecord is one row of calibration history, without the full artifact.
type RunRecord struct {
	Version        string    `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	PopulationSize int       `json:"population_size"`
	DatesSampled   int       `json:"dates_sampled"`
	Checksum       string    `json:"checksum"`
	Active         bool      `json:"active"`
}

// SaveRun stores a sealed calibration table. Runs are immutable: saving an
// existing version again is a no-op.
func (r *Repository) SaveRun(ctx context.Context, table *contracts.CalibrationTable) error {
	if table == nil || table.Checksum == "" {
		return fmt.Errorf("save calibration run: table is not sealed")
	}

	artifact, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal calibration run: %w", err)
	}

	query := `
		INSERT INTO arca.calibration_runs (
			version, created_at, population_size, dates_sampled, seed,
			checksum, artifact
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (version) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		table.Version,
		table.CreatedAt,
		table.Provenance.PopulationSize,
		table.Provenance.DatesSampled,
		table.Provenance.Seed,
		table.Checksum,
		artifact,
	)

	if err != nil {
		return fmt.Errorf("save calibration run: %w", err)
	}

	return nil
}

// Activate marks one version as the serving table and clears the flag on
// every other run.
func (r *Repository) Activate(ctx context.Context, version string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM arca.calibration_runs WHERE version = $1)`,
		version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}
	if !exists {
		return fmt.Errorf("calibration version %s not found", version)
	}

	_, err = tx.Exec(ctx,
		`UPDATE arca.calibration_runs SET active = (version = $1)`,
		version,
	)
	if err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}

	return nil
}

// GetActive loads the serving calibration table. Returns nil when no run
// has been activated yet.
func (r *Repository) GetActive(ctx context.Context) (*contracts.CalibrationTable, error) {
	query := `
		SELECT artifact
		FROM arca.calibration_runs
		WHERE active
		LIMIT 1
	`

	var artifact []byte
	err := r.pool.QueryRow(ctx, query).Scan(&artifact)

	if err == pgx.ErrNoRows {
		return nil, nil // no active calibration
	}
	if err != nil {
		return nil, fmt.Errorf("get active calibration: %w", err)
	}

	var table contracts.CalibrationTable
	if err := json.Unmarshal(artifact, &table); err != nil {
		return nil, fmt.Errorf("unmarshal active calibration: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("active calibration is invalid: %w", err)
	}
	if err := table.VerifyChecksum(); err != nil {
		return nil, fmt.Errorf("active calibration: %w", err)
	}

	return &table, nil
}

// History lists recent calibration runs, newest first.
func (r *Repository) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT version, created_at, population_size, dates_sampled, checksum, active
		FROM arca.calibration_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list calibration runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.Version, &rec.CreatedAt, &rec.PopulationSize,
			&rec.DatesSampled, &rec.Checksum, &rec.Active,
		); err != nil {
			return nil, fmt.Errorf("scan calibration run: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calibration runs: %w", err)
	}

	return records, nil
}
