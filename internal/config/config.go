package config

import (
	"fmt"
	"slices"
	"time"
)

// Environment names accepted by --env.
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// Environments lists the valid target environments.
var Environments = []string{EnvDev, EnvTest, EnvProd}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the root application configuration.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Source       SourceConfig       `yaml:"source"`
	Environments EnvironmentsConfig `yaml:"environments"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// SourceConfig holds settings for fetching the case report page.
type SourceConfig struct {
	URL        string        `yaml:"url"         env:"SOURCE_URL"         env-default:"https://eblanding.com/covid-19-case-report-summary/"`
	Timeout    time.Duration `yaml:"timeout"     env:"SOURCE_TIMEOUT"     env-default:"30s"`
	Retries    int           `yaml:"retries"     env:"SOURCE_RETRIES"     env-default:"1"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"SOURCE_RETRY_DELAY" env-default:"2s"`
	UserAgent  string        `yaml:"user_agent"  env:"SOURCE_USER_AGENT"  env-default:"caseledger/1.0"`
}

// EnvironmentsConfig holds one database per target environment.
type EnvironmentsConfig struct {
	Dev  DatabaseConfig `yaml:"dev"  env-prefix:"DEV_"`
	Test DatabaseConfig `yaml:"test" env-prefix:"TEST_"`
	Prod DatabaseConfig `yaml:"prod" env-prefix:"PROD_"`
}

// Get returns the database of the named environment.
func (e EnvironmentsConfig) Get(env string) (DatabaseConfig, error) {
	switch env {
	case EnvDev:
		return e.Dev, nil
	case EnvTest:
		return e.Test, nil
	case EnvProd:
		return e.Prod, nil
	}
	return DatabaseConfig{}, fmt.Errorf("unknown environment %q (want one of %v)", env, Environments)
}

// IsEnvironment reports whether env names a known environment.
func IsEnvironment(env string) bool {
	return slices.Contains(Environments, env)
}

// DatabaseConfig holds connection settings for one environment.
// DSN is a PostgreSQL connection string or an SQLite file path.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"sqlite"`
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"4"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	BusyTimeout     time.Duration `yaml:"busy_timeout"       env:"DATABASE_BUSY_TIMEOUT"       env-default:"5s"`
}

// IngestConfig holds extraction and persistence settings.
type IngestConfig struct {
	PatternSet   string `yaml:"pattern_set"   env:"INGEST_PATTERN_SET"`
	PatternsFile string `yaml:"patterns_file" env:"INGEST_PATTERNS_FILE"`
	AliasesFile  string `yaml:"aliases_file"  env:"INGEST_ALIASES_FILE"`
	CaseDedupe   string `yaml:"case_dedupe"   env:"INGEST_CASE_DEDUPE" env-default:"fingerprint"`
}

// Archive drivers.
const (
	ArchiveNone = "none"
	ArchiveFS   = "fs"
	ArchiveS3   = "s3"
)

// ArchiveConfig holds settings for storing fetched page snapshots.
type ArchiveConfig struct {
	Driver    string `yaml:"driver"     env:"ARCHIVE_DRIVER"     env-default:"none"`
	Dir       string `yaml:"dir"        env:"ARCHIVE_DIR"        env-default:"./archive"`
	Bucket    string `yaml:"bucket"     env:"ARCHIVE_BUCKET"`
	Prefix    string `yaml:"prefix"     env:"ARCHIVE_PREFIX"`
	Region    string `yaml:"region"     env:"ARCHIVE_REGION"     env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint"   env:"ARCHIVE_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARCHIVE_SECRET_KEY"`
	PathStyle bool   `yaml:"path_style" env:"ARCHIVE_PATH_STYLE" env-default:"false"`
}

// MetricsConfig holds run metrics settings. An empty textfile disables them.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"METRICS_TEXTFILE"`
	Job      string `yaml:"job"      env:"METRICS_JOB"      env-default:"caseledger"`
}
