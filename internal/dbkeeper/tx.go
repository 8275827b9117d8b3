package dbkeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxFunc is a unit of work. Everything it does through tx is committed
// together when it returns nil and rolled back when it returns an error.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// WithinTx runs fn inside a READ COMMITTED transaction. Statements that need
// stronger guarantees take row locks explicitly.
func (kp *DBKeeper) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	// Checking database connection
	if kp.pool == nil {
		return errNilPool
	}

	tx, err := kp.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		kp.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Using deferred function to rollback transaction in case of an error
	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback(context.WithoutCancel(ctx))
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				// Logging rollback error without overriding the main error
				kp.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
			} else {
				kp.log.Info("Transaction rolled back due to an error", zap.Error(err))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
