//go:build integration

package casestore_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ebcovid/caseledger/internal/adapter/postgres/casestore"
	"github.com/ebcovid/caseledger/internal/adapter/postgres/testhelper"
	"github.com/ebcovid/caseledger/internal/domain"
)

func newRepo(t *testing.T) (*casestore.Repo, func(query string, args ...any) int) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	testhelper.Reset(t, pool)

	count := func(query string, args ...any) int {
		var n int
		require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
		return n
	}
	return casestore.New(pool), count
}

func TestRepo_GetOrCreateEntity_Concurrent(t *testing.T) {
	repo, count := newRepo(t)
	ctx := context.Background()

	const workers = 16
	var (
		ids     [workers]int64
		created atomic.Int32
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			return repo.RunInTx(ctx, func(ctx context.Context) error {
				e, ok, err := repo.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
				if err != nil {
					return err
				}
				if ok {
					created.Add(1)
				}
				ids[i] = e.ID
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, count(`SELECT count(*) FROM facilities WHERE name = $1`, "Groton"))
}

func TestRepo_GetOrCreateEntity_DistinctKinds(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	f, _, err := repo.GetOrCreateEntity(ctx, domain.EntityFacility, "431")
	require.NoError(t, err)
	b, created, err := repo.GetOrCreateEntity(ctx, domain.EntityBuilding, "431")
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, domain.EntityBuilding, b.Kind)
	assert.Equal(t, "431", f.Name)
}

func TestRepo_SyncAlias_AppendOnly(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	groton, _, err := repo.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)
	quonset, _, err := repo.GetOrCreateEntity(ctx, domain.EntityFacility, "Quonset Point")
	require.NoError(t, err)

	alias := domain.Alias{Kind: domain.EntityFacility, Raw: "Groton facility", EntityID: groton.ID}

	created, err := repo.SyncAlias(ctx, alias)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.SyncAlias(ctx, alias)
	require.NoError(t, err)
	assert.False(t, created)

	alias.EntityID = quonset.ID
	_, err = repo.SyncAlias(ctx, alias)
	assert.ErrorIs(t, err, domain.ErrAliasRemapped)
}

func TestRepo_InsertCase_Fingerprint(t *testing.T) {
	repo, count := newRepo(t)
	ctx := context.Background()

	groton, _, err := repo.GetOrCreateEntity(ctx, domain.EntityFacility, "Groton")
	require.NoError(t, err)

	n := 1234
	fp := "5f2b"
	tested := time.Date(2020, time.October, 14, 0, 0, 0, 0, time.UTC)
	c := domain.PersistedCase{
		CaseNumber:  &n,
		FacilityID:  &groton.ID,
		PostedDate:  time.Date(2020, time.October, 17, 0, 0, 0, 0, time.UTC),
		TestedDate:  &tested,
		Fingerprint: &fp,
		PatternSet:  "v3",
		RunID:       uuid.New(),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	first, inserted, err := repo.InsertCase(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)

	c.RunID = uuid.New()
	second, inserted, err := repo.InsertCase(ctx, c)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RunID, second.RunID)
	require.NotNil(t, second.CaseNumber)
	assert.Equal(t, 1234, *second.CaseNumber)

	// Without a fingerprint nothing deduplicates.
	c.Fingerprint = nil
	_, inserted, err = repo.InsertCase(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)
	_, inserted, err = repo.InsertCase(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)

	assert.Equal(t, 3, count(`SELECT count(*) FROM covid_cases`))
}

func TestRepo_RunInTx_RollsBack(t *testing.T) {
	repo, count := newRepo(t)
	ctx := context.Background()

	missing := int64(999)
	err := repo.RunInTx(ctx, func(ctx context.Context) error {
		if _, _, err := repo.GetOrCreateEntity(ctx, domain.EntityDepartment, "Pipe Shop"); err != nil {
			return err
		}
		_, _, err := repo.InsertCase(ctx, domain.PersistedCase{
			FacilityID: &missing,
			PostedDate: time.Date(2020, time.October, 17, 0, 0, 0, 0, time.UTC),
			PatternSet: "v3",
			RunID:      uuid.New(),
			CreatedAt:  time.Now().UTC(),
		})
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, count(`SELECT count(*) FROM departments`))
}
