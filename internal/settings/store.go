// Package settings persists the admin settings record holding the latest
// shelf ids. The record is a single row; a store that has never been written
// loads as empty settings.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidPayload = errors.New("settings: invalid payload")

type Settings struct {
	LatestMovieIDs []int64 `json:"latestMovieIds"`
}

// Store loads and saves the settings record. Save returns what was stored.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) (Settings, error)
}

// Normalize drops duplicate ids, keeping the first occurrence, and never
// returns a nil slice.
func (s Settings) Normalize() Settings {
	out := make([]int64, 0, len(s.LatestMovieIDs))
	seen := make(map[int64]bool, len(s.LatestMovieIDs))
	for _, id := range s.LatestMovieIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return Settings{LatestMovieIDs: out}
}

func (s Settings) Contains(id int64) bool {
	for _, v := range s.LatestMovieIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Decode reads a settings payload. A missing id list decodes as empty.
// Only the shape is checked; the shelf cap belongs to the editor.
func Decode(r io.Reader) (Settings, error) {
	var s Settings
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s.Normalize(), nil
}

func decodeIDs(raw []byte) ([]int64, error) {
	if len(raw) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decoding latest_movie_ids: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
