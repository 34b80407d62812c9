package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql operations shared by *sql.DB and
// *sql.Tx. Stores accept a DBTX so the same query code runs standalone or
// inside a multi-store transaction (login creating a session, invite
// acceptance flipping a membership).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Transact runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
