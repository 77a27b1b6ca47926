package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
// Database settings are checked per environment by Database, since only the
// selected environment needs to be usable.
func (c *Config) Validate() error {
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Source.validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	switch c.Ingest.CaseDedupe {
	case "fingerprint", "none":
	default:
		return fmt.Errorf("ingest.case_dedupe must be fingerprint or none (got %q)", c.Ingest.CaseDedupe)
	}

	if err := c.Archive.validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	return nil
}

// Database returns the validated database settings of env.
func (c *Config) Database(env string) (DatabaseConfig, error) {
	db, err := c.Environments.Get(env)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if err := db.validate(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("environments.%s: %w", env, err)
	}
	return db, nil
}

func (l LogConfig) validate() error {
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", s.Timeout)
	}
	if s.Retries < 0 {
		return fmt.Errorf("retries must be >= 0 (got %d)", s.Retries)
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("driver must be %s or %s (got %q)", DriverPostgres, DriverSQLite, d.Driver)
	}
	if d.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if d.MaxConns < 1 {
		return fmt.Errorf("max_conns must be >= 1 (got %d)", d.MaxConns)
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return fmt.Errorf("min_conns must be between 0 and max_conns (got %d)", d.MinConns)
	}
	return nil
}

func (a ArchiveConfig) validate() error {
	switch a.Driver {
	case ArchiveNone:
	case ArchiveFS:
		if a.Dir == "" {
			return fmt.Errorf("dir is required for the fs driver")
		}
	case ArchiveS3:
		if a.Bucket == "" {
			return fmt.Errorf("bucket is required for the s3 driver")
		}
		if (a.AccessKey == "") != (a.SecretKey == "") {
			return fmt.Errorf("access_key and secret_key must be set together")
		}
	default:
		return fmt.Errorf("driver must be none, fs or s3 (got %q)", a.Driver)
	}
	return nil
}
