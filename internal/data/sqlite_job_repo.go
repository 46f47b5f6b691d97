package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/target/title-doctor/internal/domain/model"
)

// SQLiteJobRepo stores job records in a local SQLite database for
// single-node deployments. Timestamps are stored as unix milliseconds.
type SQLiteJobRepo struct {
	DB *sql.DB
}

// OpenSQLite opens the database file at path with settings suited to a
// single writer process.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return db, nil
}

// NewSQLiteJobRepo creates a SQLite job store. The schema is created by migrate.Run.
func NewSQLiteJobRepo(db *sql.DB) *SQLiteJobRepo {
	return &SQLiteJobRepo{DB: db}
}

// Get loads a job record by id.
func (r *SQLiteJobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}

	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT record FROM pipeline_jobs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return decodeJobRecord([]byte(raw))
}

// Set upserts the full record.
func (r *SQLiteJobRepo) Set(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	const q = `
		INSERT INTO pipeline_jobs (id, status, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET status = excluded.status,
		    record = excluded.record,
		    updated_at = excluded.updated_at`
	_, err = r.DB.ExecContext(ctx, q,
		job.ID, string(job.Status), string(raw), job.CreatedAt.UnixMilli(), job.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// ListStale returns non-terminal jobs last updated before the cutoff, oldest first.
func (r *SQLiteJobRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT record FROM pipeline_jobs
		WHERE status NOT IN ('completed', 'failed') AND updated_at < ?
		ORDER BY updated_at
		LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, q, before.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()

	return scanJobRecords(rows)
}

// Health pings the database.
func (r *SQLiteJobRepo) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
