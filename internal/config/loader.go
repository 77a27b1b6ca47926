package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when neither --config nor CONFIG_PATH is set.
const DefaultPath = "./config.yaml"

// Load reads configuration with priority ENV > YAML > env-default tags.
//
// The file is path, else $CONFIG_PATH, else DefaultPath. A missing file is
// an error only when it was named explicitly. Relative file paths inside the
// YAML (patterns, aliases, archive dir, sqlite databases, metrics textfile)
// are resolved against the directory of the config file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	case explicit:
		return nil, fmt.Errorf("config: file %s: %w", path, statErr)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	rel := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	rel(&c.Ingest.PatternsFile)
	rel(&c.Ingest.AliasesFile)
	rel(&c.Archive.Dir)
	rel(&c.Metrics.Textfile)
	for _, db := range []*DatabaseConfig{&c.Environments.Dev, &c.Environments.Test, &c.Environments.Prod} {
		if db.Driver == DriverSQLite {
			rel(&db.DSN)
		}
	}
}
