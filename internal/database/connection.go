package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	sqlx.ExtContext
}

// source hands out the execer a store runs its statements on.
type source interface {
	handle(ctx context.Context) (execer, error)
}

func (m *Manager) handle(ctx context.Context) (execer, error) {
	db, err := m.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Tx is an open transaction. Tx has no Begin, so transactions do not nest.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) handle(context.Context) (execer, error) {
	return t.tx, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Begin starts a transaction on a live handle.
func (m *Manager) Begin(ctx context.Context) (*Tx, error) {
	db, err := m.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Transaction wraps fn in a transaction. The transaction is rolled back when
// fn returns an error and committed otherwise.
func (m *Manager) Transaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	return tx.Commit()
}
