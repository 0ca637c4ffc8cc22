package featured

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelstream/internal/catalog"
	"reelstream/internal/settings"
)

// countingStore records every call that would reach the settings backend.
type countingStore struct {
	inner settings.Store
	loads atomic.Int32
	saves atomic.Int32
	fail  error
}

func (c *countingStore) Load(ctx context.Context) (settings.Settings, error) {
	c.loads.Add(1)
	return c.inner.Load(ctx)
}

func (c *countingStore) Save(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	c.saves.Add(1)
	if c.fail != nil {
		return settings.Settings{}, c.fail
	}
	return c.inner.Save(ctx, s)
}

func (c *countingStore) calls() int32 { return c.loads.Load() + c.saves.Load() }

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestSelection_AddThirteenthMakesNoCall(t *testing.T) {
	store := &countingStore{inner: settings.NewMemory(ids(12)...)}
	sel := NewSelection(store, MaxLatest, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, sel.Refresh(ctx))
	before := store.calls()

	got, err := sel.Add(ctx, 13)
	assert.ErrorIs(t, err, ErrLatestFull)
	assert.Equal(t, ids(12), got)
	assert.Equal(t, before, store.calls())
}

func TestSelection_AddPresentIsNoop(t *testing.T) {
	store := &countingStore{inner: settings.NewMemory(ids(12)...)}
	sel := NewSelection(store, MaxLatest, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, sel.Refresh(ctx))
	before := store.calls()

	got, err := sel.Add(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 12)
	assert.Equal(t, before, store.calls())
}

func TestSelection_AddAndRemove(t *testing.T) {
	store := &countingStore{inner: settings.NewMemory(3)}
	sel := NewSelection(store, MaxLatest, zerolog.Nop())
	ctx := context.Background()

	got, err := sel.Add(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, got)
	assert.EqualValues(t, 1, store.loads.Load(), "first edit loads lazily")
	assert.EqualValues(t, 1, store.saves.Load())

	got, err = sel.Remove(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, got)

	saves := store.saves.Load()
	got, err = sel.Remove(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, got)
	assert.Equal(t, saves, store.saves.Load())

	stored, _ := store.inner.Load(ctx)
	assert.Equal(t, []int64{7}, stored.LatestMovieIDs)
}

func TestSelection_SaveFailureKeepsList(t *testing.T) {
	store := &countingStore{inner: settings.NewMemory(1), fail: errors.New("db down")}
	sel := NewSelection(store, MaxLatest, zerolog.Nop())
	ctx := context.Background()

	_, err := sel.Add(ctx, 2)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, []int64{1}, sel.IDs())
}

func TestSelection_LimitIsCapped(t *testing.T) {
	assert.Equal(t, MaxLatest, NewSelection(settings.NewMemory(), 50, zerolog.Nop()).Limit())
	assert.Equal(t, 3, NewSelection(settings.NewMemory(), 3, zerolog.Nop()).Limit())
}

type fakeCatalog struct {
	movies []catalog.Movie
	calls  atomic.Int32
}

func (f *fakeCatalog) List(context.Context) ([]catalog.Movie, error) {
	f.calls.Add(1)
	return f.movies, nil
}

func movies(n int) []catalog.Movie {
	out := make([]catalog.Movie, n)
	for i := range out {
		out[i] = catalog.Movie{ID: int64(i + 1), Title: "Movie " + string(rune('A'+i))}
	}
	return out
}

func TestService_LatestInStoredOrder(t *testing.T) {
	cat := &fakeCatalog{movies: movies(5)}
	svc := NewService(cat, settings.NewMemory(4, 99, 2), DefaultConfig())

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(4), latest[0].ID)
	assert.Equal(t, int64(2), latest[1].ID)
	assert.True(t, latest[0].IsLatest)
}

func TestService_LatestIsCachedUntilInvalidated(t *testing.T) {
	cat := &fakeCatalog{movies: movies(3)}
	store := settings.NewMemory(1)
	svc := NewService(cat, store, DefaultConfig())
	ctx := context.Background()

	_, err := svc.Latest(ctx)
	require.NoError(t, err)
	_, err = store.Save(ctx, settings.Settings{LatestMovieIDs: []int64{2, 3}})
	require.NoError(t, err)

	latest, _ := svc.Latest(ctx)
	assert.Len(t, latest, 1)
	assert.EqualValues(t, 1, cat.calls.Load())

	svc.Invalidate()
	latest, _ = svc.Latest(ctx)
	assert.Len(t, latest, 2)
}

func TestService_LatestCacheExpires(t *testing.T) {
	cat := &fakeCatalog{movies: movies(2)}
	svc := NewService(cat, settings.NewMemory(1), DefaultConfig())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = svc.Latest(ctx)
	now = now.Add(31 * time.Second)
	_, _ = svc.Latest(ctx)
	assert.EqualValues(t, 2, cat.calls.Load())
}

func TestService_HomeExcludesLatest(t *testing.T) {
	cat := &fakeCatalog{movies: movies(30)}
	svc := NewService(cat, settings.NewMemory(1, 2), DefaultConfig())

	home, err := svc.Home(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, home.Latest, 2)
	assert.Equal(t, 28, home.All.Total)
	assert.Len(t, home.All.Items, 24)
	assert.Equal(t, int64(3), home.All.Items[0].ID)
	assert.True(t, home.All.HasNext)

	home, err = svc.Home(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, home.All.Items, 4)
	assert.False(t, home.All.HasNext)
}

func TestService_Available(t *testing.T) {
	cat := &fakeCatalog{movies: []catalog.Movie{
		{ID: 1, Title: "Alien"},
		{ID: 2, Title: "Aliens"},
		{ID: 3, Title: "Heat"},
	}}
	svc := NewService(cat, settings.NewMemory(), DefaultConfig())

	got, err := svc.Available(context.Background(), []int64{1}, "alien")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FEATURED_LIMIT", "40")
	t.Setenv("FEATURED_PAGE_SIZE", "10")
	t.Setenv("FEATURED_CACHE_TTL_SECONDS", "0")
	t.Setenv("FEATURED_SHOW_LATEST", "off")
	t.Setenv("FEATURED_SEARCH_LIMIT", "bogus")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, MaxLatest, cfg.Limit)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
	assert.False(t, cfg.ShowLatest)
	assert.Equal(t, 8, cfg.SearchLimit)
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, ParseIDs(" 3, x,,1,-2"))
	assert.Empty(t, ParseIDs(""))
}
