package playback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
	"reelstream/internal/playback"
	"reelstream/internal/playback/playbacktest"
)

var twoVariants = []assets.Variant{
	{Quality: assets.Q720, URL: "a.mp4"},
	{Quality: assets.Q1080, URL: "b.mp4"},
}

// startSession returns a session whose 720p source is loaded and ready.
func startSession(t *testing.T, variants []assets.Variant, opts ...playback.ControllerOption) (*playbacktest.Media, *playback.Session, *playback.Controller) {
	t.Helper()
	m := playbacktest.New()
	s, err := playback.NewSession(m, variants)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	c := playback.NewController(s, opts...)
	require.NoError(t, c.Start(context.Background(), assets.Q720))
	require.Equal(t, playback.PhaseReady, s.State().Phase)
	return m, s, c
}

func TestNewSession_NoPlayableSourceNeverLoads(t *testing.T) {
	m := playbacktest.New()
	variants := assets.Resolve(catalog.Movie{ID: 3, Title: "Empty"})

	s, err := playback.NewSession(m, variants)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, playback.ErrNoPlayableSource)
	assert.ErrorIs(t, err, assets.ErrNoPlayableSource)
	assert.Empty(t, m.Calls())
	assert.False(t, m.Attached())
}

func TestNewSession_MediaIsExclusive(t *testing.T) {
	m := playbacktest.New()
	first, err := playback.NewSession(m, twoVariants)
	require.NoError(t, err)

	_, err = playback.NewSession(m, twoVariants)
	assert.ErrorIs(t, err, playback.ErrMediaInUse)

	first.Close()
	second, err := playback.NewSession(m, twoVariants)
	require.NoError(t, err)
	second.Close()
}

func TestSession_CommandsBeforeReady(t *testing.T) {
	m := playbacktest.New()
	s, err := playback.NewSession(m, twoVariants)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, playback.PhaseIdle, s.State().Phase)
	assert.ErrorIs(t, s.Play(), playback.ErrNotReady)
	assert.ErrorIs(t, s.Seek(10), playback.ErrNotReady)
	assert.NotContains(t, m.Calls(), "play")
}

func TestSession_VolumeClamp(t *testing.T) {
	_, s, _ := startSession(t, twoVariants)

	require.NoError(t, s.SetVolume(-0.5))
	st := s.State()
	assert.Equal(t, 0.0, st.Volume)
	assert.True(t, st.Muted)

	require.NoError(t, s.SetVolume(1.5))
	st = s.State()
	assert.Equal(t, 1.0, st.Volume)
	assert.True(t, st.Muted, "raising the volume does not unmute")

	require.NoError(t, s.ToggleMute())
	st = s.State()
	assert.False(t, st.Muted)
	assert.Equal(t, 1.0, st.Volume)

	require.NoError(t, s.ToggleMute())
	require.NoError(t, s.SetVolume(0.6))
	assert.True(t, s.State().Muted)
	assert.Equal(t, 0.6, s.State().Volume)
}

func TestSession_PlayPauseAreIdempotent(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)

	require.NoError(t, s.Play())
	require.NoError(t, s.Play())
	assert.True(t, s.State().Playing)

	require.NoError(t, s.Pause())
	require.NoError(t, s.Pause())
	assert.False(t, s.State().Playing)

	var plays, pauses int
	for _, c := range m.Calls() {
		switch c {
		case "play":
			plays++
		case "pause":
			pauses++
		}
	}
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, pauses)
}

func TestSession_AutoplayRejected(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)
	m.RejectPlay(playback.ErrAutoplayRejected)

	err := s.Play()
	assert.ErrorIs(t, err, playback.ErrAutoplayRejected)
	st := s.State()
	assert.False(t, st.Playing)
	assert.True(t, st.AutoplayBlocked)
	assert.Equal(t, playback.PhaseReady, st.Phase)
}

func TestSession_PlayRejectionKeepsState(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)
	m.RejectPlay(errors.New("decoder busy"))

	require.Error(t, s.Play())
	st := s.State()
	assert.False(t, st.Playing)
	assert.False(t, st.AutoplayBlocked)
}

func TestSession_SeekClampsAndBuffers(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)

	require.NoError(t, s.Seek(250))
	st := s.State()
	assert.Equal(t, playbacktest.DefaultDuration, st.Position)
	assert.True(t, st.Buffering)

	m.Emit(playback.Event{Type: playback.EventCanPlay})
	assert.False(t, s.State().Buffering)

	require.NoError(t, s.Seek(-3))
	assert.Equal(t, 0.0, s.State().Position)
}

func TestSession_PlaybackRate(t *testing.T) {
	_, s, _ := startSession(t, twoVariants)

	require.NoError(t, s.SetPlaybackRate(1.5))
	err := s.SetPlaybackRate(3)
	assert.ErrorIs(t, err, playback.ErrRateNotAllowed)
	assert.Equal(t, 1.5, s.State().Rate)
}

func TestSession_EnvironmentFailuresAreNonFatal(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)
	require.NoError(t, s.Play())
	m.FailFullscreen(errors.New("not allowed"))

	err := s.ToggleFullscreen()
	var envErr *playback.EnvironmentError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, "fullscreen", envErr.Op)

	st := s.State()
	assert.False(t, st.Fullscreen)
	assert.True(t, st.Playing)
	assert.Equal(t, playback.PhaseReady, st.Phase)

	require.NoError(t, s.TogglePictureInPicture())
	assert.True(t, s.State().PictureInPicture)
}

func TestSession_SubscribersSeeEventsSynchronously(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)

	var seen []playback.State
	cancel := s.Subscribe(func(st playback.State) { seen = append(seen, st) })

	m.Advance(12)
	require.Len(t, seen, 1)
	assert.Equal(t, 12.0, seen[0].Position)

	m.Emit(playback.Event{Type: playback.EventWaiting})
	require.Len(t, seen, 2)
	assert.True(t, seen[1].Buffering)
	assert.Greater(t, seen[1].Seq, seen[0].Seq)

	cancel()
	m.Advance(13)
	assert.Len(t, seen, 2)
}

func TestSession_MediaErrorThenRetry(t *testing.T) {
	m, s, c := startSession(t, twoVariants)
	require.NoError(t, s.Play())
	m.Advance(40)

	m.Emit(playback.Event{Type: playback.EventError, Err: errors.New("network lost")})
	st := s.State()
	assert.Equal(t, playback.PhaseErrored, st.Phase)
	var perr *playback.PlaybackError
	require.ErrorAs(t, st.Cause, &perr)
	assert.Equal(t, assets.Q720, perr.Quality)
	assert.False(t, st.Playing)

	require.NoError(t, c.Retry(context.Background()))
	st = s.State()
	assert.Equal(t, playback.PhaseReady, st.Phase)
	assert.Nil(t, st.Cause)
	assert.Equal(t, []string{"a.mp4", "a.mp4"}, m.Loads())
}

func TestSession_StaleSourceEventsIgnored(t *testing.T) {
	m, s, c := startSession(t, twoVariants)
	require.NoError(t, c.SwitchTo(context.Background(), assets.Q1080))

	before := s.State()
	m.Emit(playback.Event{Type: playback.EventTimeUpdate, Source: "a.mp4", Position: 77})
	m.Emit(playback.Event{Type: playback.EventError, Source: "a.mp4", Err: errors.New("late")})
	assert.Equal(t, before, s.State())
}

func TestSession_Close(t *testing.T) {
	m, s, _ := startSession(t, twoVariants)

	s.Close()
	s.Close()
	assert.Equal(t, playback.PhaseClosed, s.State().Phase)
	assert.False(t, m.Attached())

	assert.ErrorIs(t, s.Play(), playback.ErrClosed)
	assert.ErrorIs(t, s.SetVolume(0.5), playback.ErrClosed)
	assert.ErrorIs(t, s.ToggleFullscreen(), playback.ErrClosed)
}
