package postgres

import (
	"context"
	"time"

	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5"
)

// channelName is the NOTIFY channel the triggers use for table
func channelName(table store.Table) string {
	return "tandem_" + string(table)
}

// Subscribe LISTENs on the table's channel over a dedicated connection.
// Notifications carry the trigger operation as payload. The connection is
// re-established if it drops, until ctx is done or the subscription is closed.
func (s *Store) Subscribe(ctx context.Context, table store.Table) (*store.Subscription, error) {
	conn, err := s.listen(ctx, table)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan store.Event, 1)

	go func() {
		defer close(events)
		defer func() {
			if conn != nil {
				conn.Close(context.Background())
			}
		}()

		for {
			n, err := conn.WaitForNotification(ctx)
			if err == nil {
				select {
				case events <- store.Event{Table: table, Op: parseOp(n.Payload)}:
				default:
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}

			s.log.Warn("change feed interrupted", "table", table, "err", err)
			conn.Close(context.Background())
			conn = nil

			for conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.reconnectDelay):
				}
				conn, err = s.listen(ctx, table)
				if err != nil && ctx.Err() == nil {
					s.log.Warn("change feed reconnect failed", "table", table, "err", err)
				}
			}

			// Anything may have changed while disconnected
			select {
			case events <- store.Event{Table: table, Op: store.OpUnknown}:
			default:
			}
		}
	}()

	return store.NewSubscription(events, cancel), nil
}

func (s *Store) listen(ctx context.Context, table store.Table) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, classify("listen", err)
	}

	channel := pgx.Identifier{channelName(table)}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		conn.Close(context.Background())
		return nil, classify("listen", err)
	}
	return conn, nil
}

func parseOp(payload string) store.Op {
	switch op := store.Op(payload); op {
	case store.OpInsert, store.OpUpdate, store.OpDelete:
		return op
	}
	return store.OpUnknown
}
