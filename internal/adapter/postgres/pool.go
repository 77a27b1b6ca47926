package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebcovid/caseledger/internal/config"
)

// ApplicationName is reported to the server as application_name so ingest
// sessions can be told apart in pg_stat_activity.
const ApplicationName = "caseledger"

// NewPool opens a connection pool for one environment and pings it.
func NewPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	if db.DSN == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	poolCfg, err := pgxpool.ParseConfig(db.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	poolCfg.MaxConns = db.MaxConns
	poolCfg.MinConns = db.MinConns
	poolCfg.MaxConnLifetime = db.MaxConnLifetime
	poolCfg.MaxConnIdleTime = db.MaxConnIdleTime
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
