package settings

import (
	"context"
	"sync"
)

// Memory keeps settings in process. Used by tests and SETTINGS_BACKEND=memory.
type Memory struct {
	mu sync.Mutex
	s  Settings
}

func NewMemory(initial ...int64) *Memory {
	return &Memory{s: Settings{LatestMovieIDs: initial}.Normalize()}
}

func (m *Memory) Load(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySettings(m.s), nil
}

func (m *Memory) Save(_ context.Context, s Settings) (Settings, error) {
	s = s.Normalize()
	m.mu.Lock()
	m.s = copySettings(s)
	m.mu.Unlock()
	return s, nil
}

func copySettings(s Settings) Settings {
	ids := make([]int64, len(s.LatestMovieIDs))
	copy(ids, s.LatestMovieIDs)
	return Settings{LatestMovieIDs: ids}
}
