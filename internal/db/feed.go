package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/dori/tandem/internal/store"
)

// Subscribe registers for change notifications on table. Writes made through
// this DB are announced immediately; writes from other processes are picked up
// by Watch.
func (db *DB) Subscribe(ctx context.Context, table store.Table) (*store.Subscription, error) {
	inner := db.hub.Subscribe(table)
	stop := context.AfterFunc(ctx, inner.Close)

	return store.NewSubscription(inner.Events(), func() {
		stop()
		inner.Close()
	}), nil
}

// Watch polls PRAGMA data_version, which changes only when another connection
// commits, and announces both tables when it moves. It runs until Close.
// The pragma is read inside a transaction that has already read a table,
// otherwise a WAL connection keeps reporting its old snapshot.
func (db *DB) Watch(interval time.Duration) {
	if interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	db.stop = cancel

	db.wg.Add(1)
	go func() {
		defer db.wg.Done()

		last, err := db.dataVersion(ctx)
		if err != nil {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			version, err := db.dataVersion(ctx)
			if err != nil {
				continue
			}
			if version != last {
				last = version
				db.hub.Publish(store.Event{Table: store.TableProjects, Op: store.OpUnknown})
				db.hub.Publish(store.Event{Table: store.TableTasks, Op: store.OpUnknown})
			}
		}
	}()
}

func (db *DB) dataVersion(ctx context.Context) (int64, error) {
	var version int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var n int64
		if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM projects").Scan(&n); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version)
	})
	return version, err
}
