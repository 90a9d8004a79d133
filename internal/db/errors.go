package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dori/tandem/internal/store"
	"github.com/mattn/go-sqlite3"
)

// classify maps a driver error onto the storage taxonomy
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.E(op, store.ErrNotFound, nil)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return store.E(op, store.ErrValidation, err)
	}

	return store.E(op, store.ErrNetwork, err)
}
