package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ebcovid/caseledger/internal/alias"
	"github.com/ebcovid/caseledger/internal/domain"
	"github.com/ebcovid/caseledger/pkg/ctxutil"
)

// Canonicalizer maps extracted raw names to canonical entities and persists
// case rows.
type Canonicalizer struct {
	log        *slog.Logger
	store      Store
	aliases    *alias.Table
	dedupe     Dedupe
	patternSet string
	now        func() time.Time
}

// NewCanonicalizer creates a Canonicalizer. patternSet is recorded on every
// stored case.
func NewCanonicalizer(logger *slog.Logger, store Store, aliases *alias.Table, dedupe Dedupe, patternSet string) *Canonicalizer {
	return &Canonicalizer{
		log:        logger.With("component", "canonicalizer"),
		store:      store,
		aliases:    aliases,
		dedupe:     dedupe,
		patternSet: patternSet,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SyncAliases makes sure every canonical name of the alias table exists as an
// entity and every alias is recorded against it. It runs in one transaction
// and fails on the first alias that would be remapped.
func (c *Canonicalizer) SyncAliases(ctx context.Context) (created int, err error) {
	err = c.store.RunInTx(ctx, func(txCtx context.Context) error {
		created = 0
		for _, kind := range domain.EntityKinds {
			ids := make(map[string]int64)
			for _, name := range c.aliases.Names(kind) {
				e, _, err := c.store.GetOrCreateEntity(txCtx, kind, name)
				if err != nil {
					return fmt.Errorf("%s %q: %w", kind, name, err)
				}
				ids[name] = e.ID
			}

			for _, a := range c.aliases.Entries(kind) {
				ok, err := c.store.SyncAlias(txCtx, domain.Alias{Kind: kind, Raw: a.Raw, EntityID: ids[a.Canonical]})
				if err != nil {
					return fmt.Errorf("sync alias: %w", err)
				}
				if ok {
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		c.log.Info("aliases synced", slog.Int("created", created))
	}
	return created, nil
}

// ResolveAndPersist resolves the raw names of rec to canonical entity ids and
// stores the case row, all in one transaction. inserted is false when the
// case was already stored by an earlier run.
func (c *Canonicalizer) ResolveAndPersist(ctx context.Context, rec domain.CaseRecord) (pc domain.PersistedCase, inserted bool, err error) {
	runID, _ := ctxutil.RunIDFromCtx(ctx)

	err = c.store.RunInTx(ctx, func(txCtx context.Context) error {
		row := domain.PersistedCase{
			CaseNumber:   rec.CaseNumber,
			PostedDate:   rec.PostedDate,
			LastWorkDate: rec.LastWorkDate,
			TestedDate:   rec.TestedDate,
			PatternSet:   c.patternSet,
			RunID:        runID,
			CreatedAt:    c.now(),
		}
		if c.dedupe == DedupeFingerprint {
			fp := Fingerprint(rec)
			row.Fingerprint = &fp
		}

		for _, kind := range domain.EntityKinds {
			id, err := c.resolve(txCtx, kind, rec.RawName(kind))
			if err != nil {
				return err
			}
			row.SetEntityID(kind, id)
		}

		stored, ok, err := c.store.InsertCase(txCtx, row)
		if err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		pc, inserted = stored, ok
		return nil
	})
	if err != nil {
		return domain.PersistedCase{}, false, err
	}
	return pc, inserted, nil
}

// Resolve returns the canonical name for a raw name without touching storage.
func (c *Canonicalizer) Resolve(kind domain.EntityKind, raw string) string {
	name, _ := c.aliases.Canonical(kind, raw)
	return name
}

func (c *Canonicalizer) resolve(ctx context.Context, kind domain.EntityKind, raw *string) (*int64, error) {
	if raw == nil {
		return nil, nil
	}
	name := c.Resolve(kind, *raw)
	if name == "" {
		return nil, nil
	}

	e, created, err := c.store.GetOrCreateEntity(ctx, kind, name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	if created {
		c.log.Debug("entity created", slog.String("kind", kind.String()), slog.String("name", name), slog.Int64("id", e.ID))
	}
	return &e.ID, nil
}

// RunID returns the run id carried by ctx, or a fresh one.
func RunID(ctx context.Context) uuid.UUID {
	if id, ok := ctxutil.RunIDFromCtx(ctx); ok {
		return id
	}
	return uuid.New()
}
