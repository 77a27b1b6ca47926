package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the common interface implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txCtxKey struct{}

// txState is the transaction carried in a context. depth counts the
// savepoints opened on top of it.
type txState struct {
	tx    *sql.Tx
	depth int
}

func txFromCtx(ctx context.Context) (*txState, bool) {
	st, ok := ctx.Value(txCtxKey{}).(*txState)
	return st, ok
}

// querierFromCtx returns the transaction from context if present,
// otherwise returns db.
func querierFromCtx(ctx context.Context, db *sql.DB) Querier {
	if st, ok := txFromCtx(ctx); ok {
		return st.tx
	}
	return db
}

// TxManager runs functions in transactions carried through the context.
// A nested RunInTx runs in a SAVEPOINT of the outer transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn within a transaction, committing on success and
// rolling back on error or panic.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := txFromCtx(ctx); ok {
		return m.runInSavepoint(ctx, outer, fn)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, &txState{tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) runInSavepoint(ctx context.Context, outer *txState, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("sp_%d", outer.depth+1)
	if _, err := outer.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	inner := &txState{tx: outer.tx, depth: outer.depth + 1}

	defer func() {
		if r := recover(); r != nil {
			_, _ = outer.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
			_, _ = outer.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, inner)); err != nil {
		if _, rbErr := outer.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint failed: %w (original error: %v)", rbErr, err)
		}
		if _, relErr := outer.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return fmt.Errorf("release savepoint failed: %w (original error: %v)", relErr, err)
		}
		return err
	}

	if _, err := outer.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
