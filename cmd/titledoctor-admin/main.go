package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/bootstrap"
	"github.com/target/title-doctor/internal/data"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := fprintf(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Apply the job store schema (postgres or sqlite backend)",
			run:         runMigrations,
		},
		"get-job": {
			name:        "get-job",
			description: "Print a job record by id",
			run:         runGetJob,
		},
		"list-stale": {
			name:        "list-stale",
			description: "List non-terminal jobs with no progress for a while",
			run:         runListStale,
		},
		"reap": {
			name:        "reap",
			description: "Run one reaper pass, failing stale jobs through the failure aggregator",
			run:         runReap,
		},
		"queue-depth": {
			name:        "queue-depth",
			description: "Show queued and in-flight pipeline messages (redis queue)",
			run:         runQueueDepth,
		},
		"requeue-inflight": {
			name:        "requeue-inflight",
			description: "Move claimed but unacknowledged messages back to the queue",
			run:         runRequeueInflight,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := fprintf(w, "Usage: titledoctor-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := fprintf(w, "Available commands:\n"); err != nil {
		return err
	}

	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := fprintf(w, "  %-24s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	cfg := cmdCtx.Config
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := bootstrap.ConnectDB(ctx, cfg.Postgres, cmdCtx.Logger)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("db close failed", "error", closeErr)
			}
		}()

		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return migrateErr
		}
	case config.StoreBackendSQLite:
		db, err := data.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("sqlite close failed", "error", closeErr)
			}
		}()

		cmdCtx.Logger.Info("running sqlite migrations", "path", cfg.SQLite.Path)
		if migrateErr := data.RunSQLiteMigrations(ctx, db); migrateErr != nil {
			return fmt.Errorf("run sqlite migrations: %w", migrateErr)
		}
	default:
		return fmt.Errorf("JOB_STORE_BACKEND=%s has no schema to migrate", cfg.Store.Backend)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func fprintf(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
