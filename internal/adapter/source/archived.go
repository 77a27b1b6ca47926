package source

import (
	"context"
	"fmt"
)

// SnapshotGetter reads a stored page snapshot.
type SnapshotGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Archived replays a snapshot from the page archive.
type Archived struct {
	archive SnapshotGetter
	key     string
}

// NewArchived creates a source reading key from archive.
func NewArchived(archive SnapshotGetter, key string) *Archived {
	return &Archived{archive: archive, key: key}
}

// Name returns the snapshot key.
func (a *Archived) Name() string { return "archive:" + a.key }

// Fetch reads the snapshot.
func (a *Archived) Fetch(ctx context.Context) ([]byte, error) {
	body, err := a.archive.Get(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return body, nil
}
