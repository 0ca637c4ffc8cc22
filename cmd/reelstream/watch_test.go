package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelstream/internal/catalog"
	"reelstream/internal/featured"
	"reelstream/internal/playback/playbacktest"
	"reelstream/internal/settings"
	"reelstream/internal/watch"
)

type stubGateway map[int64]catalog.Movie

func (g stubGateway) Get(_ context.Context, id int64) (catalog.Movie, error) {
	m, ok := g[id]
	if !ok {
		return catalog.Movie{}, &catalog.FetchError{Op: "get", Status: http.StatusNotFound, Err: catalog.ErrNotFound}
	}
	return m, nil
}

var movieGateway = stubGateway{
	7: {ID: 7, Title: "Heat", VideoLink720p: "a.mp4", VideoLink1080p: "b.mp4"},
	8: {ID: 8, Title: "Blank"},
}

func runScript(t *testing.T, id int64, script string) (string, *playbacktest.Media) {
	t.Helper()
	m := playbacktest.New()
	v := watch.New(movieGateway, m, watch.Options{Autoplay: true, Logger: zerolog.Nop()})
	defer v.Close()
	var out bytes.Buffer
	require.NoError(t, runWatch(context.Background(), v, id, strings.NewReader(script), &out))
	return out.String(), m
}

func TestRunWatch_Commands(t *testing.T) {
	out, m := runScript(t, 7, "pause\nvol 0.5\nmute\nrate 1.5\nq 1080\nbogus\nquit\nplay\n")

	assert.Contains(t, out, "playing: Heat (720p)")
	assert.Contains(t, out, "[paused]")
	assert.Contains(t, out, "vol 50%")
	assert.Contains(t, out, "vol muted")
	assert.Contains(t, out, "1080p")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, m.Loads())
	assert.NotContains(t, out, "[playing]", "commands after quit are ignored")
}

func TestRunWatch_RateOutsideSet(t *testing.T) {
	out, _ := runScript(t, 7, "rate 3\n")
	assert.Contains(t, out, "error:")
}

func TestRunWatch_NoSource(t *testing.T) {
	out, m := runScript(t, 8, "pause\n")
	assert.Contains(t, out, "no_source: Blank")
	assert.Contains(t, out, "actions: retry, home")
	assert.Contains(t, out, "nothing is playing")
	assert.Empty(t, m.Loads())
}

func TestRunWatch_FetchError(t *testing.T) {
	out, _ := runScript(t, 99, "retry\n")
	assert.Equal(t, 2, strings.Count(out, "fetch_error"))
	assert.Contains(t, out, "actions: retry, home")
}

func TestRunWatch_EnvironmentFailureIsReported(t *testing.T) {
	m := playbacktest.New()
	m.FailFullscreen(assert.AnError)
	v := watch.New(movieGateway, m, watch.Options{Autoplay: true, Logger: zerolog.Nop()})
	defer v.Close()
	var out bytes.Buffer
	require.NoError(t, runWatch(context.Background(), v, 7, strings.NewReader("fs\n"), &out))
	assert.Contains(t, out.String(), "playback continues")
	assert.True(t, v.Session().State().Playing)
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", clock(-3))
	assert.Equal(t, "01:40", clock(100))
	assert.Equal(t, "1:01:01", clock(3661))
}

func TestPrintMovies(t *testing.T) {
	movies := []catalog.Movie{
		{ID: 1, Title: "Alien", VideoLink720p: "x"},
		{ID: 2, Title: "Heat", Details: "crime"},
	}
	var out bytes.Buffer
	printMovies(&out, movies, "crime", 1)
	assert.Contains(t, out.String(), "Heat")
	assert.Contains(t, out.String(), "no source")
	assert.NotContains(t, out.String(), "Alien")

	out.Reset()
	printMovies(&out, movies, "", 1)
	assert.Contains(t, out.String(), "720p")
	assert.Contains(t, out.String(), "page 1, 2 movies")
}

func TestApplyEdit_FullShelfMakesNoWrite(t *testing.T) {
	var gets, posts atomic.Int32
	ids := make([]int64, featured.MaxLatest)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		} else {
			gets.Add(1)
		}
		_ = json.NewEncoder(w).Encode(settings.Settings{LatestMovieIDs: ids})
	}))
	defer srv.Close()

	sel := featured.NewSelection(settings.NewClient(srv.URL, "tok", srv.Client()), featured.MaxLatest, zerolog.Nop())
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := applyEdit(cmd, sel, 13, true)
	assert.ErrorIs(t, err, featured.ErrLatestFull)
	assert.EqualValues(t, 1, gets.Load())
	assert.EqualValues(t, 0, posts.Load())

	require.NoError(t, applyEdit(cmd, sel, 99, false))
	assert.EqualValues(t, 0, posts.Load(), "removing an absent id is a no-op")
	assert.Contains(t, out.String(), "latest (12/12)")
}
