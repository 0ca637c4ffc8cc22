package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reelstream/internal/assets"
	"reelstream/internal/metrics"
)

// Session drives one Media for one movie. The current source is always the
// resolved URL of the current quality.
type Session struct {
	id       string
	media    Media
	variants []assets.Variant
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	alive   bool
	waiter  chan error
	subs    map[int]func(State)
	nextSub int
}

type SessionOption func(*Session)

func WithSessionLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithSessionID overrides the generated session id used in logs.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession attaches to media. With no variants it returns ErrNoPlayableSource
// and never touches the media.
func NewSession(media Media, variants []assets.Variant, opts ...SessionOption) (*Session, error) {
	if len(variants) == 0 {
		return nil, ErrNoPlayableSource
	}
	if media == nil {
		return nil, errors.New("playback: nil media")
	}
	s := &Session{
		id:       uuid.NewString(),
		media:    media,
		variants: append([]assets.Variant(nil), variants...),
		log:      zerolog.Nop(),
		state:    State{Phase: PhaseIdle, Volume: 1, Rate: 1},
		alive:    true,
		subs:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("session", s.id).Logger()
	if err := media.Attach(s.handle); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Variants returns the resolved variants in ascending quality order.
func (s *Session) Variants() []assets.Variant {
	return append([]assets.Variant(nil), s.variants...)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that caused the change and must not call back into the session.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Play is a no-op when already playing. A rejected play leaves Playing
// untouched; autoplay rejection sets AutoplayBlocked instead.
func (s *Session) Play() error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state.Playing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.media.Play(); err != nil {
		if errors.Is(err, ErrAutoplayRejected) {
			metrics.PlaybackErrorTotal.WithLabelValues("autoplay").Inc()
			s.update(func(st *State) { st.AutoplayBlocked = true })
		}
		return fmt.Errorf("play: %w", err)
	}
	s.update(func(st *State) {
		st.Playing = true
		st.AutoplayBlocked = false
		st.Ended = false
	})
	return nil
}

// Pause is a no-op when already paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.state.Playing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.media.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	s.update(func(st *State) { st.Playing = false })
	return nil
}

// Seek clamps to [0, duration] and marks the session buffering until the
// media reports it can play again.
func (s *Session) Seek(seconds float64) error {
	if math.IsNaN(seconds) {
		return fmt.Errorf("seek: %w", ErrInvalidValue)
	}
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	pos := s.state.clampPosition(seconds)
	s.state.Position = pos
	s.state.Buffering = true
	s.state.Ended = false
	snap, subs := s.commitLocked()
	s.mu.Unlock()
	s.notify(snap, subs)

	if err := s.media.Seek(pos); err != nil {
		s.update(func(st *State) { st.Buffering = false })
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SetVolume clamps v to [0, 1]. Zero also mutes; a later non-zero volume
// does not unmute.
func (s *Session) SetVolume(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("volume: %w", ErrInvalidValue)
	}
	v = clamp(v, 0, 1)
	return s.apply(func() error {
		if err := s.media.SetVolume(v); err != nil {
			return err
		}
		if v == 0 {
			return s.media.SetMuted(true)
		}
		return nil
	}, func(st *State) {
		st.Volume = v
		if v == 0 {
			st.Muted = true
		}
	})
}

func (s *Session) SetMuted(muted bool) error {
	return s.apply(func() error { return s.media.SetMuted(muted) },
		func(st *State) { st.Muted = muted })
}

// ToggleMute flips the mute flag. Volume is left as is.
func (s *Session) ToggleMute() error {
	return s.SetMuted(!s.State().Muted)
}

// SetPlaybackRate accepts only values in AllowedRates.
func (s *Session) SetPlaybackRate(r float64) error {
	if !rateAllowed(r) {
		return fmt.Errorf("%w: %v", ErrRateNotAllowed, r)
	}
	return s.apply(func() error { return s.media.SetRate(r) },
		func(st *State) { st.Rate = r })
}

// ToggleFullscreen failures come back as *EnvironmentError; playback carries on.
func (s *Session) ToggleFullscreen() error {
	target := !s.State().Fullscreen
	return s.environment("fullscreen", func() error { return s.media.SetFullscreen(target) },
		func(st *State) { st.Fullscreen = target })
}

func (s *Session) TogglePictureInPicture() error {
	target := !s.State().PictureInPicture
	return s.environment("picture-in-picture", func() error { return s.media.SetPictureInPicture(target) },
		func(st *State) { st.PictureInPicture = target })
}

// Close detaches from the media and releases any waiting load. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	if to, ok := next(s.state.Phase, trigClose); ok {
		s.state.Phase = to
	}
	s.state.Playing = false
	s.state.Buffering = false
	w := s.waiter
	s.waiter = nil
	snap, subs := s.commitLocked()
	s.subs = make(map[int]func(State))
	s.mu.Unlock()

	if w != nil {
		w <- ErrClosed
	}
	s.media.Detach()
	s.notify(snap, subs)
	s.log.Debug().Msg("session closed")
}

// load switches the source to quality q. The returned channel receives nil
// once metadata is ready, or the load error.
func (s *Session) load(q assets.Quality) (<-chan error, error) {
	v, ok := assets.Lookup(s.variants, q)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQualityUnavailable, q)
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	to, ok := next(s.state.Phase, trigLoad)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("playback: cannot load from %s", s.state.Phase)
	}
	if s.waiter != nil {
		s.waiter <- errSuperseded
	}
	w := make(chan error, 1)
	s.waiter = w
	s.state.Phase = to
	s.state.Quality = q
	s.state.Source = v.URL
	s.state.Buffering = true
	s.state.Playing = false
	s.state.Ended = false
	s.state.AutoplayBlocked = false
	s.state.Position = 0
	s.state.Duration = 0
	s.state.DurationKnown = false
	s.state.Cause = nil
	snap, subs := s.commitLocked()
	s.mu.Unlock()
	s.notify(snap, subs)

	s.log.Debug().Str("quality", q.String()).Str("src", v.URL).Msg("loading source")
	if err := s.media.Load(v.URL); err != nil {
		s.handle(Event{Type: EventError, Source: v.URL, Err: err})
	}
	return w, nil
}

// restore reapplies captured state onto a freshly loaded source. Position is
// bounded by the new duration.
func (s *Session) restore(snap State) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	pos := s.state.clampPosition(snap.Position)
	s.mu.Unlock()

	var errs []error
	if pos > 0 {
		errs = append(errs, s.media.Seek(pos))
	}
	errs = append(errs,
		s.media.SetVolume(snap.Volume),
		s.media.SetMuted(snap.Muted),
		s.media.SetRate(snap.Rate),
	)
	var playErr error
	if snap.Playing {
		playErr = s.media.Play()
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state.Position = pos
	s.state.Volume = snap.Volume
	s.state.Muted = snap.Muted
	s.state.Rate = snap.Rate
	s.state.Buffering = false
	switch {
	case snap.Playing && playErr == nil:
		s.state.Playing = true
	case errors.Is(playErr, ErrAutoplayRejected):
		s.state.AutoplayBlocked = true
	}
	st, subs := s.commitLocked()
	s.mu.Unlock()
	s.notify(st, subs)

	return errors.Join(append(errs, playErr)...)
}

func (s *Session) handle(ev Event) {
	s.mu.Lock()
	if !s.alive || (ev.Source != "" && ev.Source != s.state.Source) {
		s.mu.Unlock()
		return
	}

	var (
		w      chan error
		result error
	)
	st := &s.state
	switch ev.Type {
	case EventLoadedMetadata:
		to, ok := next(st.Phase, trigMetadata)
		if !ok {
			s.mu.Unlock()
			return
		}
		st.Phase = to
		st.Duration = ev.Duration
		st.DurationKnown = ev.Duration > 0
		w, s.waiter = s.waiter, nil
	case EventDurationChange:
		st.Duration = ev.Duration
		st.DurationKnown = ev.Duration > 0
		st.Position = st.clampPosition(st.Position)
	case EventTimeUpdate:
		st.Position = st.clampPosition(ev.Position)
	case EventWaiting:
		st.Buffering = true
	case EventCanPlay:
		st.Buffering = false
	case EventPlaying:
		st.Playing = true
		st.Buffering = false
		st.AutoplayBlocked = false
		st.Ended = false
	case EventPause:
		st.Playing = false
	case EventEnded:
		st.Playing = false
		st.Ended = true
	case EventError:
		to, ok := next(st.Phase, trigError)
		if !ok {
			s.mu.Unlock()
			return
		}
		cause := &PlaybackError{Quality: st.Quality, Source: st.Source, Err: ev.Err}
		st.Phase = to
		st.Playing = false
		st.Buffering = false
		st.Cause = cause
		w, s.waiter = s.waiter, nil
		result = cause
		metrics.PlaybackErrorTotal.WithLabelValues("media").Inc()
		s.log.Warn().Err(ev.Err).Str("quality", st.Quality.String()).Msg("media error")
	default:
		s.mu.Unlock()
		return
	}
	snap, subs := s.commitLocked()
	s.mu.Unlock()

	if w != nil {
		w <- result
	}
	s.notify(snap, subs)
}

func (s *Session) readyLocked() error {
	if !s.alive {
		return ErrClosed
	}
	if s.state.Phase != PhaseReady {
		return ErrNotReady
	}
	return nil
}

// apply calls into the media outside the lock, then records the change.
func (s *Session) apply(call func() error, mutate func(*State)) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()
	if err := call(); err != nil {
		return err
	}
	return s.update(mutate)
}

func (s *Session) environment(op string, call func() error, mutate func(*State)) error {
	err := s.apply(call, mutate)
	if err == nil || errors.Is(err, ErrClosed) {
		return err
	}
	metrics.PlaybackErrorTotal.WithLabelValues("environment").Inc()
	s.log.Warn().Err(err).Str("op", op).Msg("environment capability failed")
	return &EnvironmentError{Op: op, Err: err}
}

func (s *Session) update(mutate func(*State)) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	mutate(&s.state)
	snap, subs := s.commitLocked()
	s.mu.Unlock()
	s.notify(snap, subs)
	return nil
}

func (s *Session) commitLocked() (State, []func(State)) {
	s.state.Seq++
	subs := make([]func(State), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return s.state, subs
}

func (s *Session) notify(st State, subs []func(State)) {
	for _, fn := range subs {
		fn(st)
	}
}
