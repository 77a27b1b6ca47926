package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ebcovid/caseledger/internal/domain"
)

// FS stores snapshots as files under a root directory.
type FS struct {
	root string
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("archive: create root: %w", err)
	}
	return &FS{root: root}, nil
}

// Name describes the archive location.
func (a *FS) Name() string { return "file://" + a.root }

// Put writes body under key. Existing snapshots are never overwritten.
func (a *FS) Put(_ context.Context, key string, body []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	dst := filepath.Join(a.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("archive: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("archive: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}

	// Link fails when dst exists, which keeps Put create-only.
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("archive: %s: %w", key, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("archive: link: %w", err)
	}
	return nil
}

// Get reads the snapshot stored under key.
func (a *FS) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("archive: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read: %w", err)
	}
	return body, nil
}

// List returns the stored snapshot keys in ascending order.
func (a *FS) List(_ context.Context) ([]string, error) {
	var keys []string
	dir := filepath.Join(a.root, filepath.FromSlash(SnapshotPrefix))
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
