package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ebcovid/caseledger/internal/adapter/sqlite"
	"github.com/ebcovid/caseledger/internal/domain"
	"github.com/ebcovid/caseledger/migrations"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cases.db"), 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	provider, err := migrations.NewProvider("sqlite", db)
	require.NoError(t, err)
	_, err = provider.Up(ctx)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestStore_GetOrCreateEntity(t *testing.T) {
	t.Parallel()
	store := sqlite.NewStore(setupDB(t))
	ctx := context.Background()

	e, created, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, e.ID)

	again, created, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e, again)

	// Names are unique per kind, not across kinds.
	b, created, err := store.GetOrCreateEntity(ctx, domain.EntityBuilding, "Groton")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.EntityBuilding, b.Kind)

	_, _, err = store.GetOrCreateEntity(ctx, domain.EntityKind("site"), "Groton")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStore_GetOrCreateEntity_Concurrent(t *testing.T) {
	t.Parallel()
	db := setupDB(t)
	store := sqlite.NewStore(db)

	const workers = 8
	var (
		ids     [workers * 2]int64
		created atomic.Int32
	)

	g, ctx := errgroup.WithContext(context.Background())
	for i := range workers {
		// Half outside any transaction, half inside one.
		g.Go(func() error {
			e, ok, err := store.GetOrCreateEntity(ctx, domain.EntityDepartment, "Pipe Shop")
			if ok {
				created.Add(1)
			}
			ids[i] = e.ID
			return err
		})
		g.Go(func() error {
			return store.RunInTx(ctx, func(ctx context.Context) error {
				e, ok, err := store.GetOrCreateEntity(ctx, domain.EntityDepartment, "Pipe Shop")
				if ok {
					created.Add(1)
				}
				ids[workers+i] = e.ID
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, count(t, db, `SELECT count(*) FROM departments`))
}

func TestStore_RunInTx_Savepoint(t *testing.T) {
	t.Parallel()
	db := setupDB(t)
	store := sqlite.NewStore(db)
	ctx := context.Background()

	errInner := errors.New("inner failed")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if _, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton"); err != nil {
			return err
		}

		err := store.RunInTx(ctx, func(ctx context.Context) error {
			if _, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Quonset Point"); err != nil {
				return err
			}
			return errInner
		})
		require.ErrorIs(t, err, errInner)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, db, `SELECT count(*) FROM facilities WHERE name = ?`, "Groton"))
	assert.Zero(t, count(t, db, `SELECT count(*) FROM facilities WHERE name = ?`, "Quonset Point"))
}

func TestStore_RunInTx_Rollback(t *testing.T) {
	t.Parallel()
	db := setupDB(t)
	store := sqlite.NewStore(db)
	ctx := context.Background()

	missing := int64(999)
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if _, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton"); err != nil {
			return err
		}
		_, _, err := store.InsertCase(ctx, domain.PersistedCase{
			FacilityID: &missing,
			PostedDate: time.Date(2020, time.October, 17, 0, 0, 0, 0, time.UTC),
			PatternSet: "v3",
			RunID:      uuid.New(),
			CreatedAt:  time.Now(),
		})
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, count(t, db, `SELECT count(*) FROM facilities`))
}

func TestStore_SyncAlias(t *testing.T) {
	t.Parallel()
	store := sqlite.NewStore(setupDB(t))
	ctx := context.Background()

	groton, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)
	quonset, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Quonset Point")
	require.NoError(t, err)

	alias := domain.Alias{Kind: domain.EntityFacility, Raw: "Groton facility", EntityID: groton.ID}

	created, err := store.SyncAlias(ctx, alias)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.SyncAlias(ctx, alias)
	require.NoError(t, err)
	assert.False(t, created)

	alias.EntityID = quonset.ID
	_, err = store.SyncAlias(ctx, alias)
	require.ErrorIs(t, err, domain.ErrAliasRemapped)

	var remap *domain.AliasRemapError
	require.ErrorAs(t, err, &remap)
	assert.Equal(t, groton.ID, remap.StoredID)

	// The same spelling may alias an entity of another kind.
	created, err = store.SyncAlias(ctx, domain.Alias{Kind: domain.EntityBuilding, Raw: "Groton facility", EntityID: quonset.ID})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestStore_InsertCase(t *testing.T) {
	t.Parallel()
	db := setupDB(t)
	store := sqlite.NewStore(db)
	ctx := context.Background()

	groton, _, err := store.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)

	n := 1234
	fp := "9c1d"
	lastWork := time.Date(2020, time.October, 12, 0, 0, 0, 0, time.UTC)
	c := domain.PersistedCase{
		CaseNumber:   &n,
		FacilityID:   &groton.ID,
		PostedDate:   time.Date(2020, time.October, 17, 0, 0, 0, 0, time.UTC),
		LastWorkDate: &lastWork,
		Fingerprint:  &fp,
		PatternSet:   "v3",
		RunID:        uuid.New(),
		CreatedAt:    time.Date(2020, time.October, 17, 9, 30, 0, 0, time.UTC),
	}

	first, inserted, err := store.InsertCase(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, first.ID)

	replay := c
	replay.RunID = uuid.New()
	stored, inserted, err := store.InsertCase(ctx, replay)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, stored)

	c.Fingerprint = nil
	for range 2 {
		_, inserted, err = store.InsertCase(ctx, c)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
	assert.Equal(t, 3, count(t, db, `SELECT count(*) FROM covid_cases`))
	assert.Equal(t, 3, count(t, db, `SELECT count(*) FROM covid_cases WHERE tested_date IS NULL AND last_work_date = ?`, "2020-10-12"))
	assert.Equal(t, 1, count(t, db, `SELECT count(*) FROM covid_cases WHERE fingerprint = ?`, fp))
	assert.Equal(t, 2, count(t, db, `SELECT count(*) FROM covid_cases WHERE fingerprint IS NULL`))
}
