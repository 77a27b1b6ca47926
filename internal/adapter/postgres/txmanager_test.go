package postgres_test

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebcovid/caseledger/internal/adapter/postgres"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunInTx_Commit(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	tm := postgres.NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO facilities`).WithArgs("Groton").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		_, err := postgres.QuerierFromCtx(ctx, mock).Exec(ctx, `INSERT INTO facilities (name) VALUES ($1)`, "Groton")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	tm := postgres.NewTxManager(mock)
	sentinel := errors.New("business logic error")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.RunInTx(context.Background(), func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	tm := postgres.NewTxManager(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "test panic", func() {
		_ = tm.RunInTx(context.Background(), func(context.Context) error { panic("test panic") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginError(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	tm := postgres.NewTxManager(mock)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := tm.RunInTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}

// A nested RunInTx runs in a savepoint: its rollback does not abort the
// outer transaction, which still commits.
func TestRunInTx_NestedRollsBackToSavepoint(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	tm := postgres.NewTxManager(mock)
	inner := errors.New("inner failure")

	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectCommit()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		nestedErr := tm.RunInTx(ctx, func(context.Context) error { return inner })
		assert.ErrorIs(t, nestedErr, inner)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuerierFromCtx_NoTx(t *testing.T) {
	t.Parallel()
	mock := newMock(t)

	assert.Equal(t, postgres.Querier(mock), postgres.QuerierFromCtx(context.Background(), mock))
}
