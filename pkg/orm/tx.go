package orm

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// TxBeginner starts transactions. *sql.DB and *sql.Conn satisfy it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx returns a factory sharing f's registrations whose repositories run on tx
func (f *Factory) WithTx(tx *sql.Tx) *Factory {
	return f.derive(tx)
}

// Transaction runs fn with a factory bound to a new transaction on db. The
// transaction commits when fn returns nil and rolls back otherwise.
func (f *Factory) Transaction(ctx context.Context, db TxBeginner, fn func(tx *Factory) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(f.derive(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		f.logger.Debug("rolled back transaction", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
