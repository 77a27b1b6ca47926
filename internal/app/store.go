package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql

	"github.com/ebcovid/caseledger/internal/adapter/postgres"
	"github.com/ebcovid/caseledger/internal/adapter/postgres/casestore"
	"github.com/ebcovid/caseledger/internal/adapter/sqlite"
	"github.com/ebcovid/caseledger/internal/app/ingest"
	"github.com/ebcovid/caseledger/internal/config"
	"github.com/ebcovid/caseledger/migrations"
)

// Compile-time interface assertions.
var (
	_ ingest.Store = (*casestore.Repo)(nil)
	_ ingest.Store = (*sqlite.Store)(nil)
)

// OpenStore connects to the database of one environment. The returned
// function releases the connection.
func OpenStore(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (ingest.Store, func(), error) {
	switch db.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("connected to database", slog.String("driver", db.Driver))
		return casestore.New(pool), pool.Close, nil
	case config.DriverSQLite:
		conn, err := sqlite.Open(ctx, db.DSN, db.BusyTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("opened database", slog.String("driver", db.Driver), slog.String("path", db.DSN))
		return sqlite.NewStore(conn), func() { _ = conn.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
}

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

// Migrate runs a goose migration command against the database of one
// environment and writes what it did to out.
func Migrate(ctx context.Context, db config.DatabaseConfig, command string, out io.Writer) error {
	conn, err := openSQL(ctx, db)
	if err != nil {
		return err
	}
	defer conn.Close()

	provider, err := migrations.NewProvider(db.Driver, conn)
	if err != nil {
		return err
	}

	switch command {
	case MigrateUp:
		results, err := provider.Up(ctx)
		for _, r := range results {
			fmt.Fprintf(out, "applied %s (%s)\n", r.Source.Path, r.Duration)
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "no pending migrations")
		}
	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintf(out, "rolled back %s (%s)\n", r.Source.Path, r.Duration)
	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-28s %s\n", s.Source.Path, applied)
		}
	default:
		return fmt.Errorf("unknown migrate command %q (want %s, %s or %s)", command, MigrateUp, MigrateDown, MigrateStatus)
	}
	return nil
}

// migrateUp applies pending migrations before an ingest run.
func migrateUp(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) error {
	conn, err := openSQL(ctx, db)
	if err != nil {
		return err
	}
	defer conn.Close()

	provider, err := migrations.NewProvider(db.Driver, conn)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", slog.String("migration", r.Source.Path))
	}
	return nil
}

// openSQL opens a database/sql handle, which goose requires.
func openSQL(ctx context.Context, db config.DatabaseConfig) (*sql.DB, error) {
	switch db.Driver {
	case config.DriverPostgres:
		conn, err := sql.Open("pgx", db.DSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := conn.PingContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return conn, nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, db.DSN, db.BusyTimeout)
	}
	return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
}
