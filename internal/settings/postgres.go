package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// querier is the part of pgxpool.Pool the store needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectSettings = `SELECT latest_movie_ids FROM app_settings WHERE id = 1`
	upsertSettings = `INSERT INTO app_settings (id, latest_movie_ids, updated_at)
VALUES (1, $1::jsonb, now())
ON CONFLICT (id) DO UPDATE SET latest_movie_ids = EXCLUDED.latest_movie_ids, updated_at = now()
RETURNING latest_movie_ids`
)

// Postgres stores settings in the app_settings table created by
// pkg/db.EnsureSettingsSchema.
type Postgres struct {
	db querier
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Load(ctx context.Context) (Settings, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, selectSettings).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{LatestMovieIDs: []int64{}}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	ids, err := decodeIDs(raw)
	if err != nil {
		return Settings{}, err
	}
	return Settings{LatestMovieIDs: ids}, nil
}

func (p *Postgres) Save(ctx context.Context, s Settings) (Settings, error) {
	s = s.Normalize()
	payload, err := json.Marshal(s.LatestMovieIDs)
	if err != nil {
		return Settings{}, err
	}
	var raw []byte
	if err := p.db.QueryRow(ctx, upsertSettings, string(payload)).Scan(&raw); err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	ids, err := decodeIDs(raw)
	if err != nil {
		return Settings{}, err
	}
	return Settings{LatestMovieIDs: ids}, nil
}
