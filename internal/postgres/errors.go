package postgres

import (
	"context"
	"errors"

	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// classify maps a pgx error onto the storage taxonomy
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.E(op, store.ErrNotFound, nil)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "23", "22": // integrity constraint violation, data exception
			return store.E(op, store.ErrValidation, err)
		case "42": // syntax error or access rule violation: schema not set up
			return store.E(op, store.ErrConfiguration, err)
		}
	}

	return store.E(op, store.ErrNetwork, err)
}
