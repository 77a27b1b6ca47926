// Package ingest turns a case report page into persisted case rows.
package ingest

import (
	"context"

	"github.com/ebcovid/caseledger/internal/domain"
)

// Store is the persistence contract consumed by the canonicalizer.
// All methods use only domain types. Implemented by casestore.Repo
// (PostgreSQL) and sqlite.Store.
type Store interface {
	// RunInTx executes fn in a transaction carried by the context passed to fn.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetOrCreateEntity returns the entity of kind with exactly this name,
	// creating it if needed. Concurrent callers racing on the same name all
	// get the same row; the losing insert is recovered internally and never
	// surfaces as an error. created reports whether this call inserted it.
	GetOrCreateEntity(ctx context.Context, kind domain.EntityKind, name string) (e domain.Entity, created bool, err error)

	// SyncAlias records an alias. An alias already stored for the same entity
	// is a no-op; one stored for a different entity fails with
	// *domain.AliasRemapError.
	SyncAlias(ctx context.Context, a domain.Alias) (created bool, err error)

	// InsertCase stores a case row. A row whose fingerprint is already stored
	// is skipped and reported with inserted=false.
	InsertCase(ctx context.Context, c domain.PersistedCase) (stored domain.PersistedCase, inserted bool, err error)
}
