package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// cql is the part of a gocql session the store uses.
type cql interface {
	scan(ctx context.Context, stmt string, dest ...any) error
	exec(ctx context.Context, stmt string, args ...any) error
}

type gocqlSession struct{ s *gocql.Session }

func (g gocqlSession) scan(ctx context.Context, stmt string, dest ...any) error {
	return g.s.Query(stmt).WithContext(ctx).Scan(dest...)
}

func (g gocqlSession) exec(ctx context.Context, stmt string, args ...any) error {
	return g.s.Query(stmt, args...).WithContext(ctx).Exec()
}

// Scylla stores settings in <keyspace>.app_settings created by
// internal/db.EnsureSchema.
type Scylla struct {
	db       cql
	keyspace string
	now      func() time.Time
}

func NewScylla(session *gocql.Session, keyspace string) *Scylla {
	return newScylla(gocqlSession{session}, keyspace)
}

func newScylla(db cql, keyspace string) *Scylla {
	return &Scylla{db: db, keyspace: keyspace, now: time.Now}
}

func (s *Scylla) Load(ctx context.Context) (Settings, error) {
	var ids []int64
	err := s.db.scan(ctx, fmt.Sprintf(`SELECT latest_movie_ids FROM %s.app_settings WHERE id = 1`, s.keyspace), &ids)
	if errors.Is(err, gocql.ErrNotFound) {
		return Settings{LatestMovieIDs: []int64{}}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return Settings{LatestMovieIDs: ids}, nil
}

func (s *Scylla) Save(ctx context.Context, in Settings) (Settings, error) {
	in = in.Normalize()
	err := s.db.exec(ctx, fmt.Sprintf(`INSERT INTO %s.app_settings (id, latest_movie_ids, updated_at) VALUES (1, ?, ?)`, s.keyspace),
		in.LatestMovieIDs, s.now().UTC())
	if err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	return in, nil
}
