package database

import (
	"context"
	"fmt"

	"github.com/trogers1052/market-sync/internal/ingest"
)

// Tx is a store transaction handed to InTx callbacks
type Tx struct {
	q querier
}

var _ ingest.TxStore = (*Tx)(nil)

// InTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(tx ingest.TxStore) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
