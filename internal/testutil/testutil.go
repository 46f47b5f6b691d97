// Package testutil provides test helpers for the title doctor stores and pipeline.
//
// Infrastructure helpers skip the calling test when the backing service is
// unreachable, unless TEST_REQUIRE_DB, TEST_REQUIRE_REDIS or
// TEST_REQUIRE_INFRA is set, in which case they fail it.
package testutil

import (
	"io"
	"os"
	"strings"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	TempDir() string
	Cleanup(func())
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// unavailable skips t, or fails it when the named requirement is set.
func unavailable(t TB, requireEnv, format string, args ...any) {
	t.Helper()
	if envBool(requireEnv) || envBool("TEST_REQUIRE_INFRA") {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func closeQuietly(t TB, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}
