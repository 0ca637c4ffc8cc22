// Package watch runs the watch view: fetch a movie, resolve its sources,
// drive one playback session and report what the user should see.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
	"reelstream/internal/playback"
)

var ErrClosed = errors.New("watch: view closed")

// Gateway fetches a single movie record.
type Gateway interface {
	Get(ctx context.Context, id int64) (catalog.Movie, error)
}

type Options struct {
	// Preferred wins over the bandwidth heuristic when the movie has it.
	Preferred     assets.Quality
	BandwidthKbps float64
	SwitchTimeout time.Duration
	Autoplay      bool
	Probe         ProbeFunc
	Logger        zerolog.Logger
	Controls      []playback.ControlsOption
}

// View owns at most one session at a time. Opening another id or closing
// the view tears the current one down.
type View struct {
	gw    Gateway
	media playback.Media
	opts  Options
	log   zerolog.Logger

	mu       sync.Mutex
	id       int64
	gen      uint64
	movie    *catalog.Movie
	fetchErr error
	noSource bool
	startErr error
	cancel   context.CancelFunc
	session  *playback.Session
	ctrl     *playback.Controller
	controls *playback.Controls
	unsub    func()
	closed   bool
}

func New(gw Gateway, media playback.Media, opts Options) *View {
	return &View{
		gw:    gw,
		media: media,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "watch").Logger(),
	}
}

// Open fetches id and starts playback on the default quality. Its error is
// also reflected by Screen.
func (v *View) Open(ctx context.Context, id int64) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.teardownLocked()
	v.gen++
	gen := v.gen
	v.id = id
	// openCtx covers the fetch, the probes and the initial load; teardown
	// cancels it.
	openCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()
	defer func() {
		cancel()
		v.mu.Lock()
		if gen == v.gen {
			v.cancel = nil
		}
		v.mu.Unlock()
	}()

	log := v.log.With().Int64("movie", id).Logger()
	movie, err := v.gw.Get(openCtx, id)

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		return context.Canceled
	}
	if err != nil {
		v.fetchErr = err
		v.mu.Unlock()
		log.Warn().Err(err).Msg("movie fetch failed")
		return err
	}
	v.movie = &movie
	v.mu.Unlock()

	variants := assets.Resolve(movie)
	if v.opts.Probe != nil && len(variants) > 0 {
		variants = reachable(openCtx, v.opts.Probe, variants, log)
	}
	if err := openCtx.Err(); err != nil {
		return err
	}
	if len(variants) == 0 {
		v.mu.Lock()
		v.noSource = true
		v.mu.Unlock()
		log.Info().Msg("no playable source")
		return playback.ErrNoPlayableSource
	}
	q, err := assets.DefaultQuality(variants, v.preferences()...)
	if err != nil {
		return err
	}

	s, err := playback.NewSession(v.media, variants, playback.WithSessionLogger(log))
	if err != nil {
		v.mu.Lock()
		v.startErr = err
		v.mu.Unlock()
		return err
	}
	ctrl := playback.NewController(s,
		playback.WithSwitchTimeout(v.opts.SwitchTimeout),
		playback.WithAutoplay(v.opts.Autoplay),
		playback.WithControllerLogger(log),
	)
	controls := playback.NewControls(v.opts.Controls...)
	unsub := s.Subscribe(func(st playback.State) { controls.SetPlaying(st.Playing) })

	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		unsub()
		s.Close()
		controls.Stop()
		return context.Canceled
	}
	v.session, v.ctrl, v.controls, v.unsub = s, ctrl, controls, unsub
	v.mu.Unlock()

	log.Info().Str("quality", q.String()).Int("variants", len(variants)).Msg("starting playback")
	if err := ctrl.Start(openCtx, q); err != nil {
		v.mu.Lock()
		if gen == v.gen {
			v.startErr = err
		}
		v.mu.Unlock()
		return err
	}
	return nil
}

// Retry re-fetches after a fetch error or a missing source, and reloads the
// current quality after a playback error. Otherwise it does nothing.
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	id := v.id
	refetch := v.fetchErr != nil || v.noSource || (v.startErr != nil && v.ctrl == nil)
	ctrl := v.ctrl
	v.mu.Unlock()

	if refetch {
		return v.Open(ctx, id)
	}
	if ctrl == nil {
		return nil
	}
	if !v.playbackFailed() {
		return nil
	}
	err := ctrl.Retry(ctx)
	v.mu.Lock()
	if v.ctrl == ctrl {
		v.startErr = err
	}
	v.mu.Unlock()
	return err
}

// Play is the explicit play affordance offered after autoplay was blocked.
func (v *View) Play() error {
	s := v.Session()
	if s == nil {
		return playback.ErrNotReady
	}
	return s.Play()
}

func (v *View) SwitchQuality(ctx context.Context, q assets.Quality) error {
	ctrl := v.Controller()
	if ctrl == nil {
		return playback.ErrNotReady
	}
	return ctrl.SwitchTo(ctx, q)
}

// Close cancels any fetch in flight and releases the media. Safe to call
// more than once.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.teardownLocked()
	v.mu.Unlock()
	v.log.Debug().Msg("view closed")
}

func (v *View) Session() *playback.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *View) Controller() *playback.Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl
}

func (v *View) Controls() *playback.Controls {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controls
}

// Screen derives the current screen from the fetch result and the session.
func (v *View) Screen() Screen {
	v.mu.Lock()
	sc := Screen{Kind: ScreenLoading, MovieID: v.id}
	if v.movie != nil {
		sc.Title = v.movie.Title
	}
	closed, fetchErr, noSource, startErr := v.closed, v.fetchErr, v.noSource, v.startErr
	s, ctrl := v.session, v.ctrl
	v.mu.Unlock()

	terminal := []Action{ActionRetry, ActionHome}
	switch {
	case closed:
		sc.Kind = ScreenClosed
		return sc
	case fetchErr != nil:
		sc.Kind = ScreenFetchError
		sc.Cause = fetchCause(fetchErr)
		sc.Actions = terminal
		return sc
	case noSource:
		sc.Kind = ScreenNoSource
		sc.Cause = "No playable source is available for this title."
		sc.Actions = terminal
		return sc
	case s == nil && startErr != nil:
		sc.Kind = ScreenPlaybackError
		sc.Cause = playbackCause(startErr)
		sc.Actions = terminal
		return sc
	case s == nil:
		return sc
	}

	st := s.State()
	status := ctrl.Status()
	for _, variant := range s.Variants() {
		sc.Qualities = append(sc.Qualities, variant.Quality)
	}
	sc.Quality = st.Quality
	sc.Buffering = st.Buffering

	switch {
	case status.State == playback.SwitchSwitching || status.State == playback.SwitchFailed:
		sc.Kind = ScreenPlaying
		sc.Buffering = true
	case status.State == playback.SwitchErrored || st.Phase == playback.PhaseErrored:
		sc.Kind = ScreenPlaybackError
		cause := status.Err
		if status.State != playback.SwitchErrored {
			cause = st.Cause
		}
		sc.Cause = playbackCause(cause)
		sc.Actions = terminal
		if len(sc.Qualities) > 1 {
			sc.Actions = append(sc.Actions, ActionQuality)
		}
	case st.AutoplayBlocked:
		sc.Kind = ScreenAutoplayBlocked
		sc.Actions = []Action{ActionPlay, ActionHome}
	case st.Phase == playback.PhaseReady:
		sc.Kind = ScreenPlaying
	}
	return sc
}

func (v *View) preferences() []assets.Quality {
	var prefs []assets.Quality
	if v.opts.Preferred.Valid() {
		prefs = append(prefs, v.opts.Preferred)
	}
	if v.opts.BandwidthKbps > 0 {
		prefs = append(prefs, assets.PreferenceForBandwidth(v.opts.BandwidthKbps))
	}
	return prefs
}

func (v *View) playbackFailed() bool {
	v.mu.Lock()
	s, ctrl, startErr := v.session, v.ctrl, v.startErr
	v.mu.Unlock()
	if startErr != nil {
		return true
	}
	return ctrl.Status().State == playback.SwitchErrored || s.State().Phase == playback.PhaseErrored
}

// teardownLocked must run with v.mu held. Session.Close only detaches, so
// calling it under the view lock is safe.
func (v *View) teardownLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.unsub != nil {
		v.unsub()
	}
	if v.session != nil {
		v.session.Close()
	}
	if v.controls != nil {
		v.controls.Stop()
	}
	v.session, v.ctrl, v.controls, v.unsub = nil, nil, nil, nil
	v.movie, v.fetchErr, v.startErr, v.noSource = nil, nil, nil, false
}
