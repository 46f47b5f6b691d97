package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
)

// PostgresJobRepo stores job records as JSONB rows in PostgreSQL.
// The status and timestamps are duplicated into columns for the reaper query.
type PostgresJobRepo struct {
	DB *sql.DB
}

// NewPostgresJobRepo creates a PostgreSQL job store. The schema is created by migrate.Run.
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{DB: db}
}

// Get loads a job record by id.
func (r *PostgresJobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}

	var raw []byte
	err := r.DB.QueryRowContext(ctx, `SELECT record FROM pipeline_jobs WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", apperrors.MapDBError(err))
	}

	return decodeJobRecord(raw)
}

// Set upserts the full record.
func (r *PostgresJobRepo) Set(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	const q = `
		INSERT INTO pipeline_jobs (id, status, record, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    record = EXCLUDED.record,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.DB.ExecContext(ctx, q, job.ID, string(job.Status), string(raw), job.CreatedAt, job.UpdatedAt); err != nil {
		return fmt.Errorf("upsert job: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListStale returns non-terminal jobs last updated before the cutoff, oldest first.
func (r *PostgresJobRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT record FROM pipeline_jobs
		WHERE status NOT IN ('completed', 'failed') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	return scanJobRecords(rows)
}

// Health pings the database.
func (r *PostgresJobRepo) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func decodeJobRecord(raw []byte) (*model.Job, error) {
	var j model.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job record: %w", err)
	}
	return &j, nil
}

func scanJobRecords(rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		j, err := decodeJobRecord(raw)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return jobs, nil
}
