package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool with sane defaults.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MinConns = 0
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 60 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

const settingsSchema = `CREATE TABLE IF NOT EXISTS app_settings (
	id integer PRIMARY KEY,
	latest_movie_ids jsonb NOT NULL DEFAULT '[]'::jsonb,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// EnsureSettingsSchema creates the single-row settings table when missing.
func EnsureSettingsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, settingsSchema)
	return err
}
