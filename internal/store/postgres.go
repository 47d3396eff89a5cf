package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taurimind/server/internal/log"
)

// Postgres is the PostgreSQL-backed Versioned implementation. All actor
// state lives in a single actor_state table keyed by the actor's state key.
//
// Postgres is safe for concurrent use by multiple goroutines.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a store backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger.With("component", "store")}
}

// Load implements Versioned.
func (p *Postgres) Load(ctx context.Context, key string) ([]byte, string, bool, error) {
	var state []byte
	var etag string
	err := p.pool.QueryRow(ctx,
		`SELECT state, etag FROM actor_state WHERE key = $1`, key,
	).Scan(&state, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: load %q: %v", ErrPersistence, key, err)
	}
	return state, etag, true, nil
}

// Save implements Versioned. The version tag is computed from the state
// content before the write so the durable row and the returned tag always
// agree.
func (p *Postgres) Save(ctx context.Context, key string, state []byte) (string, error) {
	etag := ETag(state)
	_, err := p.pool.Exec(ctx,
		`INSERT INTO actor_state (key, state, etag, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET state = EXCLUDED.state, etag = EXCLUDED.etag, updated_at = now()`,
		key, state, etag)
	if err != nil {
		p.logger.Error("save failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: save %q: %v", ErrPersistence, key, err)
	}
	return etag, nil
}

// Clear implements Versioned.
func (p *Postgres) Clear(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM actor_state WHERE key = $1`, key)
	if err != nil {
		p.logger.Error("clear failed", "key", key, "error", err)
		return fmt.Errorf("%w: clear %q: %v", ErrPersistence, key, err)
	}
	return nil
}
