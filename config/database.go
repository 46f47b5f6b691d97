package config

import (
	"strings"
	"time"
)

// StoreBackend selects where job records and pipeline messages live.
type StoreBackend string

const (
	// StoreBackendMemory keeps jobs and the message queue in process memory.
	StoreBackendMemory StoreBackend = "memory"
	// StoreBackendRedis keeps jobs and the message queue in Redis.
	StoreBackendRedis StoreBackend = "redis"
	// StoreBackendPostgres keeps jobs in PostgreSQL.
	StoreBackendPostgres StoreBackend = "postgres"
	// StoreBackendSQLite keeps jobs in a local SQLite file.
	StoreBackendSQLite StoreBackend = "sqlite"
)

// QueueBackend selects the transport for pipeline messages.
type QueueBackend string

const (
	// QueueBackendMemory delivers messages in process.
	QueueBackendMemory QueueBackend = "memory"
	// QueueBackendRedis delivers messages through a reliable Redis list.
	QueueBackendRedis QueueBackend = "redis"
)

// StoreConfig selects the job store and queue backends.
type StoreConfig struct {
	Backend StoreBackend `env:"JOB_STORE_BACKEND" envDefault:"memory"`
	Queue   QueueBackend `env:"QUEUE_BACKEND"     envDefault:"memory"`
}

// Sanitize normalises backend names; unknown values are rejected by bootstrap validation.
func (s *StoreConfig) Sanitize() {
	s.Backend = StoreBackend(strings.ToLower(strings.TrimSpace(string(s.Backend))))
	if s.Backend == "" {
		s.Backend = StoreBackendMemory
	}
	s.Queue = QueueBackend(strings.ToLower(strings.TrimSpace(string(s.Queue))))
	if s.Queue == "" {
		s.Queue = QueueBackendMemory
	}
}

// UsesRedis reports whether any backend needs a Redis connection.
func (s *StoreConfig) UsesRedis() bool {
	return s.Backend == StoreBackendRedis || s.Queue == QueueBackendRedis
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"titledoctor"`
	Password string `env:"PASSWORD"                envDefault:"titledoctor"`
	Name     string `env:"NAME"                    envDefault:"titledoctor"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix namespaces every key written by the job store and queue.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"titledoctor:"`
	// ClaimTimeout bounds a single blocking queue claim.
	ClaimTimeout time.Duration `env:"CLAIM_TIMEOUT" envDefault:"5s"`
}

// SQLiteConfig contains configuration for the embedded SQLite job store.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"titledoctor.db"`
}
