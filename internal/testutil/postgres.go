package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/target/title-doctor/internal/migrate"
)

// testDSN builds the Postgres DSN for tests. TEST_DATABASE_URL wins over the
// individual TEST_DB_* variables; the local default is the docker-compose
// test profile on port 55432.
func testDSN() string {
	if dsn := envOr("TEST_DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(envOr("TEST_DB_USER", "titledoctor"), envOr("TEST_DB_PASSWORD", "titledoctor")),
		Host:     net.JoinHostPort(envOr("TEST_DB_HOST", "localhost"), envOr("TEST_DB_PORT", "55432")),
		Path:     "/" + envOr("TEST_DB_NAME", "titledoctor"),
		RawQuery: "sslmode=" + envOr("DB_SSL_MODE", "disable"),
	}
	return u.String()
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func openPing(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func randomSchema() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

// SetupTestDB returns a migrated Postgres connection scoped to a throwaway
// schema that is dropped when the test ends.
func SetupTestDB(t TB) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := openPing(ctx, testDSN())
	if err != nil {
		unavailable(t, "TEST_REQUIRE_DB", "test database not available: %v", err)
		return nil
	}

	schema := randomSchema()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	dsn, err := withSearchPath(testDSN(), schema)
	if err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("parse test dsn: %v", err)
	}
	db, err := openPing(ctx, dsn)
	if err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("open schema db: %v", err)
	}

	t.Cleanup(func() {
		closeQuietly(t, "schema db", db)
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		closeQuietly(t, "admin db", admin)
	})

	if err := migrate.Run(ctx, db, migrate.Postgres); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	return db
}

// SetupSQLiteDB opens a migrated SQLite database in a per-test temp directory.
func SetupSQLiteDB(t TB) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { closeQuietly(t, "sqlite db", db) })

	if err := migrate.Run(ctx, db, migrate.SQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
