package watch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
	"reelstream/internal/playback"
	"reelstream/internal/playback/playbacktest"
	"reelstream/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGateway struct {
	mu     sync.Mutex
	movies map[int64]catalog.Movie
	calls  []int64
	block  bool
}

func (g *fakeGateway) Get(ctx context.Context, id int64) (catalog.Movie, error) {
	g.mu.Lock()
	g.calls = append(g.calls, id)
	m, ok := g.movies[id]
	block := g.block
	g.mu.Unlock()
	if block {
		<-ctx.Done()
		return catalog.Movie{}, ctx.Err()
	}
	if !ok {
		return catalog.Movie{}, &catalog.FetchError{Op: "get", Status: http.StatusNotFound, Err: catalog.ErrNotFound}
	}
	return m, nil
}

func (g *fakeGateway) Calls() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.calls...)
}

var heat = catalog.Movie{ID: 7, Title: "Heat", VideoLink720p: "a.mp4", VideoLink1080p: "b.mp4"}

func newView(t *testing.T, gw watch.Gateway, opts watch.Options) (*watch.View, *playbacktest.Media) {
	t.Helper()
	m := playbacktest.New()
	v := watch.New(gw, m, opts)
	t.Cleanup(v.Close)
	return v, m
}

func TestOpen_PlaysDefaultQuality(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{})

	require.NoError(t, v.Open(context.Background(), 7))
	sc := v.Screen()
	assert.Equal(t, watch.ScreenPlaying, sc.Kind)
	assert.Equal(t, "Heat", sc.Title)
	assert.Equal(t, assets.Q720, sc.Quality)
	assert.Equal(t, []assets.Quality{assets.Q720, assets.Q1080}, sc.Qualities)
	assert.Equal(t, []string{"a.mp4"}, m.Loads())
}

func TestOpen_NotFoundThenRetryReissuesRequest(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		fixed atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if !fixed.Load() {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id":999,"title":"Found","video_link_720p":"a.mp4"}`)
	}))
	t.Cleanup(srv.Close)
	client := catalog.New(srv.URL, catalog.WithHTTPClient(srv.Client()), catalog.WithInitialBackoff(time.Millisecond))
	v, m := newView(t, client, watch.Options{})
	ctx := context.Background()

	err := v.Open(ctx, 999)
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))

	sc := v.Screen()
	assert.Equal(t, watch.ScreenFetchError, sc.Kind)
	assert.True(t, sc.Terminal())
	assert.True(t, sc.Has(watch.ActionRetry))
	assert.True(t, sc.Has(watch.ActionHome))
	assert.NotEmpty(t, sc.Cause)

	require.Error(t, v.Retry(ctx))
	mu.Lock()
	assert.Equal(t, []string{"/movies/999", "/movies/999"}, paths)
	mu.Unlock()
	assert.Empty(t, m.Calls())

	fixed.Store(true)
	require.NoError(t, v.Retry(ctx))
	assert.Equal(t, watch.ScreenPlaying, v.Screen().Kind)
}

func TestOpen_NoSourceNeverLoads(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{3: {ID: 3, Title: "Lost Reel"}}}
	v, m := newView(t, gw, watch.Options{})

	err := v.Open(context.Background(), 3)
	assert.ErrorIs(t, err, playback.ErrNoPlayableSource)
	sc := v.Screen()
	assert.Equal(t, watch.ScreenNoSource, sc.Kind)
	assert.Equal(t, []watch.Action{watch.ActionRetry, watch.ActionHome}, sc.Actions)
	assert.Nil(t, v.Session())

	// Manual retry refetches; nothing is ever loaded into the media.
	assert.ErrorIs(t, v.Retry(context.Background()), playback.ErrNoPlayableSource)
	assert.Equal(t, []int64{3, 3}, gw.Calls())
	assert.Empty(t, m.Calls())
}

func TestOpen_QualityPreferences(t *testing.T) {
	all := catalog.Movie{ID: 1, VideoLink480p: "c.mp4", VideoLink720p: "a.mp4", VideoLink1080p: "b.mp4"}
	tests := []struct {
		name string
		opts watch.Options
		want assets.Quality
	}{
		{"default", watch.Options{}, assets.Q720},
		{"slow link", watch.Options{BandwidthKbps: 1200}, assets.Q480},
		{"fast link", watch.Options{BandwidthKbps: 20000}, assets.Q1080},
		{"explicit wins", watch.Options{Preferred: assets.Q480, BandwidthKbps: 20000}, assets.Q480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{movies: map[int64]catalog.Movie{1: all}}
			v, _ := newView(t, gw, tt.opts)
			require.NoError(t, v.Open(context.Background(), 1))
			assert.Equal(t, tt.want, v.Screen().Quality)
		})
	}
}

func TestOpen_ProbeDropsMissingVariants(t *testing.T) {
	probe := func(_ context.Context, url string) (int, error) {
		switch url {
		case "a.mp4":
			return http.StatusNotFound, nil
		case "b.mp4":
			return 0, errors.New("connection reset")
		}
		return http.StatusOK, nil
	}
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{Probe: probe})

	require.NoError(t, v.Open(context.Background(), 7))
	sc := v.Screen()
	assert.Equal(t, []assets.Quality{assets.Q1080}, sc.Qualities)
	assert.Equal(t, []string{"b.mp4"}, m.Loads())
}

func TestHeadProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/gone.mp4" {
			w.WriteHeader(http.StatusGone)
		}
	}))
	t.Cleanup(srv.Close)
	probe := watch.HeadProbe(srv.Client())

	status, err := probe(context.Background(), srv.URL+"/gone.mp4")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, status)

	status, err = probe(context.Background(), srv.URL+"/ok.mp4")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestClose_CancelsFetchInFlight(t *testing.T) {
	gw := &fakeGateway{block: true}
	v, m := newView(t, gw, watch.Options{})

	done := make(chan error, 1)
	go func() { done <- v.Open(context.Background(), 7) }()
	require.Eventually(t, func() bool { return len(gw.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, watch.ScreenLoading, v.Screen().Kind)

	v.Close()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, watch.ScreenClosed, v.Screen().Kind)
	assert.Empty(t, m.Calls())
	assert.ErrorIs(t, v.Open(context.Background(), 7), watch.ErrClosed)
}

func TestClose_CancelsProbeInFlight(t *testing.T) {
	started := make(chan struct{}, 2)
	aborted := make(chan error, 2)
	probe := func(ctx context.Context, _ string) (int, error) {
		started <- struct{}{}
		<-ctx.Done()
		aborted <- ctx.Err()
		return 0, ctx.Err()
	}
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{Probe: probe})

	done := make(chan error, 1)
	go func() { done <- v.Open(context.Background(), 7) }()
	<-started

	v.Close()
	select {
	case err := <-aborted:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Close left the HEAD request running")
	}
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, m.Loads())
	assert.Equal(t, watch.ScreenClosed, v.Screen().Kind)
}

func TestClose_DetachesMedia(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{})
	require.NoError(t, v.Open(context.Background(), 7))
	s := v.Session()

	v.Close()
	assert.False(t, m.Attached())
	assert.Equal(t, playback.PhaseClosed, s.State().Phase)
	assert.False(t, m.Closed(), "the media belongs to the caller")
}

func TestOpen_OtherIDReplacesSession(t *testing.T) {
	other := catalog.Movie{ID: 8, Title: "Ronin", VideoLink480p: "r.mp4"}
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat, 8: other}}
	v, m := newView(t, gw, watch.Options{})

	require.NoError(t, v.Open(context.Background(), 7))
	first := v.Session()
	require.NoError(t, v.Open(context.Background(), 8))

	assert.Equal(t, playback.PhaseClosed, first.State().Phase)
	assert.Equal(t, "Ronin", v.Screen().Title)
	assert.Equal(t, []string{"a.mp4", "r.mp4"}, m.Loads())
}

func TestSwitchQuality_FallbackKeepsPlaying(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{})
	m.FailOn("b.mp4", nil)
	require.NoError(t, v.Open(context.Background(), 7))

	err := v.SwitchQuality(context.Background(), assets.Q1080)
	var swErr *playback.QualitySwitchError
	require.ErrorAs(t, err, &swErr)
	assert.True(t, swErr.Recovered)

	sc := v.Screen()
	assert.Equal(t, watch.ScreenPlaying, sc.Kind)
	assert.Equal(t, assets.Q720, sc.Quality)
}

func TestPlaybackError_RetryReloads(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{})
	require.NoError(t, v.Open(context.Background(), 7))

	m.Emit(playback.Event{Type: playback.EventError, Err: errors.New("stalled")})
	sc := v.Screen()
	assert.Equal(t, watch.ScreenPlaybackError, sc.Kind)
	assert.True(t, sc.Has(watch.ActionRetry))
	assert.True(t, sc.Has(watch.ActionHome))
	assert.True(t, sc.Has(watch.ActionQuality))
	assert.NotEmpty(t, sc.Cause)

	require.NoError(t, v.Retry(context.Background()))
	assert.Equal(t, watch.ScreenPlaying, v.Screen().Kind)
	assert.Equal(t, []int64{7}, gw.Calls(), "playback retry reuses the record")
	assert.Equal(t, []string{"a.mp4", "a.mp4"}, m.Loads())
}

func TestAutoplayBlocked_OffersPlay(t *testing.T) {
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, m := newView(t, gw, watch.Options{Autoplay: true})
	m.RejectPlay(playback.ErrAutoplayRejected)

	require.NoError(t, v.Open(context.Background(), 7))
	sc := v.Screen()
	assert.Equal(t, watch.ScreenAutoplayBlocked, sc.Kind)
	assert.Equal(t, []watch.Action{watch.ActionPlay, watch.ActionHome}, sc.Actions)

	m.RejectPlay(nil)
	require.NoError(t, v.Play())
	assert.Equal(t, watch.ScreenPlaying, v.Screen().Kind)
	assert.True(t, v.Session().State().Playing)
}

func TestControlsFollowPlayState(t *testing.T) {
	var (
		mu    sync.Mutex
		fires []func()
	)
	after := func(_ time.Duration, f func()) playback.Timer {
		mu.Lock()
		fires = append(fires, f)
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}
	gw := &fakeGateway{movies: map[int64]catalog.Movie{7: heat}}
	v, _ := newView(t, gw, watch.Options{Controls: []playback.ControlsOption{playback.WithAfterFunc(after)}})
	require.NoError(t, v.Open(context.Background(), 7))
	require.NoError(t, v.Play())

	mu.Lock()
	require.NotEmpty(t, fires)
	last := fires[len(fires)-1]
	mu.Unlock()
	last()
	assert.False(t, v.Controls().Visible())

	require.NoError(t, v.Session().Pause())
	assert.True(t, v.Controls().Visible())
}
