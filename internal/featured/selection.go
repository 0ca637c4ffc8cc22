// Package featured composes the latest shelf and the home feed, and owns the
// capped editor for the shelf's id list.
package featured

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"reelstream/internal/metrics"
	"reelstream/internal/settings"
)

var ErrLatestFull = errors.New("featured: latest shelf is full")

// Selection edits the ordered latest id list. The cap is checked here, before
// any store call; the store itself accepts any list. Edits are last write wins.
type Selection struct {
	store settings.Store
	limit int
	log   zerolog.Logger

	mu     sync.Mutex
	ids    []int64
	loaded bool
}

func NewSelection(store settings.Store, limit int, log zerolog.Logger) *Selection {
	if limit <= 0 || limit > MaxLatest {
		limit = MaxLatest
	}
	return &Selection{store: store, limit: limit, log: log.With().Str("component", "latest").Logger()}
}

// Refresh reloads the id list from the store.
func (s *Selection) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Selection) refreshLocked(ctx context.Context) error {
	cur, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading latest ids: %w", err)
	}
	s.ids = cur.LatestMovieIDs
	s.loaded = true
	return nil
}

func (s *Selection) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Current returns the id list, loading it on first use.
func (s *Selection) Current(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

func (s *Selection) Limit() int { return s.limit }

// Add appends id. An id already present is a no-op and a full list yields
// ErrLatestFull; neither reaches the store.
func (s *Selection) Add(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	if contains(s.ids, id) {
		metrics.LatestUpdateTotal.WithLabelValues("add", "noop").Inc()
		return s.snapshotLocked(), nil
	}
	if len(s.ids) >= s.limit {
		metrics.LatestUpdateTotal.WithLabelValues("add", "full").Inc()
		return s.snapshotLocked(), ErrLatestFull
	}
	next := append(s.snapshotLocked(), id)
	return s.saveLocked(ctx, "add", next)
}

// Remove drops id. An absent id is a no-op without a store call.
func (s *Selection) Remove(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	if !contains(s.ids, id) {
		metrics.LatestUpdateTotal.WithLabelValues("remove", "noop").Inc()
		return s.snapshotLocked(), nil
	}
	next := make([]int64, 0, len(s.ids)-1)
	for _, v := range s.ids {
		if v != id {
			next = append(next, v)
		}
	}
	return s.saveLocked(ctx, "remove", next)
}

func (s *Selection) ensureLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.refreshLocked(ctx)
}

func (s *Selection) saveLocked(ctx context.Context, action string, next []int64) ([]int64, error) {
	saved, err := s.store.Save(ctx, settings.Settings{LatestMovieIDs: next})
	if err != nil {
		metrics.LatestUpdateTotal.WithLabelValues(action, "error").Inc()
		s.log.Error().Err(err).Str("action", action).Msg("saving latest ids failed")
		return s.snapshotLocked(), fmt.Errorf("saving latest ids: %w", err)
	}
	s.ids = saved.LatestMovieIDs
	metrics.LatestUpdateTotal.WithLabelValues(action, "ok").Inc()
	s.log.Info().Str("action", action).Ints64("ids", s.ids).Msg("latest shelf updated")
	return s.snapshotLocked(), nil
}

func (s *Selection) snapshotLocked() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
