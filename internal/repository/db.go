package repository

import (
	"context"
	"fmt"

	"github.com/Hester-Clapp/exploding-ponies/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS hands (
	game_id      TEXT PRIMARY KEY,
	winner_id    TEXT NOT NULL DEFAULT '',
	winner_name  TEXT NOT NULL DEFAULT '',
	passes       INTEGER NOT NULL DEFAULT 0,
	aborted      BOOLEAN NOT NULL DEFAULT FALSE,
	reason       TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS hand_players (
	game_id    TEXT NOT NULL REFERENCES hands(game_id) ON DELETE CASCADE,
	player_id  TEXT NOT NULL,
	username   TEXT NOT NULL,
	is_bot     BOOLEAN NOT NULL DEFAULT FALSE,
	seat       INTEGER NOT NULL,
	placement  INTEGER NOT NULL,
	PRIMARY KEY (game_id, player_id)
);

CREATE INDEX IF NOT EXISTS hands_finished_at_idx ON hands (finished_at DESC);
CREATE INDEX IF NOT EXISTS hand_players_username_idx ON hand_players (username);
`

// DB wraps the connection pool.
type DB struct {
	*pgxpool.Pool
	logger *zap.Logger
}

// NewDB opens a pool and checks the connection.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("database connected",
			zap.String("host", poolCfg.ConnConfig.Host),
			zap.String("database", poolCfg.ConnConfig.Database),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return &DB{Pool: pool, logger: logger}, nil
}

// Migrate creates the tables the repositories use.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
