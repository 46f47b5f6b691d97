package data

import (
	"context"
	"database/sql"

	"github.com/target/title-doctor/internal/migrate"
)

// RunMigrations applies the PostgreSQL schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db, migrate.Postgres)
}

// RunSQLiteMigrations applies the SQLite schema.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db, migrate.SQLite)
}
