package app

import (
	"context"
	"fmt"

	"github.com/ebcovid/caseledger/internal/adapter/archive"
	"github.com/ebcovid/caseledger/internal/config"
)

// Archive stores raw page snapshots.
type Archive interface {
	Name() string
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}

// OpenArchive returns the configured snapshot archive, or nil when archiving
// is disabled.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch cfg.Driver {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveFS:
		a, err := archive.NewFS(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.ArchiveS3:
		a, err := archive.NewS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("unsupported archive driver %q", cfg.Driver)
}
