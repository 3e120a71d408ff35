package runlock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres holds a session advisory lock on a dedicated pool connection for
// the lifetime of the run.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("runlock: acquire conn: %w", err)
	}
	lockKey := advisoryLockKey(key)

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, lockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("runlock: try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		defer conn.Release()
		var unlocked bool
		if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, lockKey).Scan(&unlocked); err != nil {
			return fmt.Errorf("runlock: advisory unlock: %w", err)
		}
		return nil
	}, nil
}
