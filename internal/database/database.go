// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okulikov/session-enroll/internal/config"
)

// NewPool creates and validates a pgxpool connection pool.
// It retries up to 5 times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DB, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingErr := pool.Ping(ctx)
			if pingErr == nil {
				return pool, nil
			}
			pool.Close()
			err = pingErr
		}
		log.Warnw("db connect failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// schema holds the persisted layout. The CHECK on current_count is a backstop;
// the repository's conditional updates are what actually keep the counter in
// range. Deleting a session cascades to its enrollments.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            UUID PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	start_time    TIMESTAMPTZ NOT NULL,
	max_capacity  INT NOT NULL CHECK (max_capacity > 0),
	current_count INT NOT NULL DEFAULT 0
	              CHECK (current_count >= 0 AND current_count <= max_capacity),
	active        BOOL NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	id          UUID PRIMARY KEY,
	session_id  UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	contact_key TEXT NOT NULL,
	phone       TEXT,
	created_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT enrollments_session_contact_unique UNIQUE (session_id, contact_key)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_contact ON enrollments (contact_key);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);
`

// Migrate applies the schema. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
