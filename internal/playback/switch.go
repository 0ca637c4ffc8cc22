package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reelstream/internal/assets"
	"reelstream/internal/metrics"
)

// DefaultSwitchTimeout bounds the wait for a new source's metadata.
const DefaultSwitchTimeout = 12 * time.Second

type SwitchState string

const (
	SwitchIdle      SwitchState = "idle"
	SwitchStable    SwitchState = "stable"
	SwitchSwitching SwitchState = "switching"
	SwitchFailed    SwitchState = "failed"
	SwitchErrored   SwitchState = "errored"
)

// Status describes the controller. Quality is the last stable quality;
// From and To are set while switching or failed.
type Status struct {
	State   SwitchState
	Quality assets.Quality
	From    assets.Quality
	To      assets.Quality
	Pending assets.Quality
	Err     error
}

// Controller swaps the session's source while keeping position, play state,
// volume, mute and rate. At most one switch runs at a time.
type Controller struct {
	session  *Session
	timeout  time.Duration
	autoplay bool
	log      zerolog.Logger

	mu      sync.Mutex
	status  Status
	pending assets.Quality
}

type ControllerOption func(*Controller)

func WithSwitchTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAutoplay makes Start request playback once the first source is ready.
func WithAutoplay(on bool) ControllerOption {
	return func(c *Controller) { c.autoplay = on }
}

func WithControllerLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

func NewController(s *Session, opts ...ControllerOption) *Controller {
	c := &Controller{
		session: s,
		timeout: DefaultSwitchTimeout,
		log:     zerolog.Nop(),
		status:  Status{State: SwitchIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("session", s.ID()).Logger()
	return c
}

func (c *Controller) Session() *Session { return c.session }

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start loads the initial quality. An autoplay rejection is not an error;
// the session reports AutoplayBlocked instead.
func (c *Controller) Start(ctx context.Context, q assets.Quality) error {
	if _, ok := assets.Lookup(c.session.Variants(), q); !ok {
		return fmt.Errorf("%w: %s", ErrQualityUnavailable, q)
	}
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrSwitchInFlight
	}
	c.status = Status{State: SwitchSwitching, To: q}
	c.mu.Unlock()

	if err := c.loadAndWait(ctx, q); err != nil {
		// A switch queued behind a failed start has no source to restore from.
		c.mu.Lock()
		c.pending = 0
		c.status.Pending = 0
		c.mu.Unlock()
		if errors.Is(err, ErrClosed) {
			return err
		}
		c.setStatus(Status{State: SwitchErrored, Quality: q, Err: err})
		c.log.Error().Err(err).Str("quality", q.String()).Msg("initial load failed")
		return err
	}
	c.setStatus(Status{State: SwitchStable, Quality: q})
	if c.autoplay {
		if err := c.session.Play(); err != nil && !errors.Is(err, ErrAutoplayRejected) {
			c.log.Warn().Err(err).Msg("autoplay failed")
		}
	}
	c.drain(ctx)
	return nil
}

// SwitchTo changes quality. A quality outside the resolved variants is
// rejected without any change. While a switch is in flight the request is
// queued, replacing any earlier queued request, and ErrSwitchQueued is
// returned; the queued target runs on the goroutine of the switch in flight.
func (c *Controller) SwitchTo(ctx context.Context, target assets.Quality) error {
	if _, ok := assets.Lookup(c.session.Variants(), target); !ok {
		metrics.QualitySwitchTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrQualityUnavailable, target)
	}

	c.mu.Lock()
	switch {
	case c.busyLocked():
		c.pending = target
		c.status.Pending = target
		c.mu.Unlock()
		metrics.QualitySwitchTotal.WithLabelValues("queued").Inc()
		return ErrSwitchQueued
	case c.status.State == SwitchStable && c.status.Quality == target:
		c.mu.Unlock()
		return nil
	case c.status.State == SwitchIdle:
		c.mu.Unlock()
		return ErrNotReady
	}
	from := c.status.Quality
	fallback := c.status.State == SwitchStable
	c.status = Status{State: SwitchSwitching, Quality: from, From: from, To: target}
	c.mu.Unlock()

	err := c.run(ctx, from, target, fallback)
	c.drain(ctx)
	return err
}

// Retry reloads the current quality, keeping position and play state. It is
// refused with ErrSwitchInFlight while a load runs; nothing is queued.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrSwitchInFlight
	}
	q := c.status.Quality
	if q == 0 {
		q = c.status.To
	}
	if q == 0 {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.status = Status{State: SwitchSwitching, Quality: q, From: q, To: q}
	c.mu.Unlock()

	snap := c.session.State()
	if err := c.loadAndWait(ctx, q); err != nil {
		if !errors.Is(err, ErrClosed) {
			c.setStatus(Status{State: SwitchErrored, Quality: q, Err: err})
		}
		return err
	}
	if err := c.session.restore(snap); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warn().Err(err).Msg("restore after retry incomplete")
	}
	c.setStatus(Status{State: SwitchStable, Quality: q})
	c.drain(ctx)
	return nil
}

func (c *Controller) drain(ctx context.Context) {
	for {
		c.mu.Lock()
		// Another switch started; it drains the queue when done.
		if c.status.State != SwitchStable {
			c.mu.Unlock()
			return
		}
		target := c.pending
		c.pending = 0
		c.status.Pending = 0
		if target == 0 || c.status.Quality == target {
			c.mu.Unlock()
			return
		}
		from := c.status.Quality
		c.status = Status{State: SwitchSwitching, Quality: from, From: from, To: target}
		c.mu.Unlock()

		if err := c.run(ctx, from, target, true); err != nil {
			c.log.Warn().Err(err).Msg("queued switch failed")
		}
	}
}

func (c *Controller) run(ctx context.Context, from, to assets.Quality, fallback bool) error {
	snap := c.session.State()
	if snap.Phase == PhaseClosed {
		return ErrClosed
	}
	log := c.log.With().Str("from", from.String()).Str("to", to.String()).Logger()

	err := c.loadAndWait(ctx, to)
	if err == nil {
		if rerr := c.session.restore(snap); rerr != nil && !errors.Is(rerr, ErrClosed) {
			log.Warn().Err(rerr).Msg("restore after switch incomplete")
		}
		c.setStatus(Status{State: SwitchStable, Quality: to})
		metrics.QualitySwitchTotal.WithLabelValues("switched").Inc()
		log.Info().Msg("quality switched")
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}

	c.setStatus(Status{State: SwitchFailed, Quality: from, From: from, To: to, Err: err})
	log.Warn().Err(err).Msg("quality switch failed")
	if !fallback {
		c.setStatus(Status{State: SwitchErrored, Quality: to, Err: err})
		metrics.QualitySwitchTotal.WithLabelValues("errored").Inc()
		return &QualitySwitchError{From: from, To: to, Cause: err}
	}

	// The caller may have given up on the switch; the session still needs a source.
	fctx := ctx
	if ctx.Err() != nil {
		fctx = context.WithoutCancel(ctx)
	}
	ferr := c.loadAndWait(fctx, from)
	if ferr == nil {
		if rerr := c.session.restore(snap); rerr != nil && !errors.Is(rerr, ErrClosed) {
			log.Warn().Err(rerr).Msg("restore after fallback incomplete")
		}
		c.setStatus(Status{State: SwitchStable, Quality: from})
		metrics.QualitySwitchTotal.WithLabelValues("fallback").Inc()
		return &QualitySwitchError{From: from, To: to, Cause: err, Recovered: true}
	}
	if errors.Is(ferr, ErrClosed) {
		return ferr
	}
	c.setStatus(Status{State: SwitchErrored, Quality: from, From: from, To: to, Err: ferr})
	metrics.QualitySwitchTotal.WithLabelValues("errored").Inc()
	log.Error().Err(ferr).Msg("fallback failed")
	return &QualitySwitchError{From: from, To: to, Cause: err, Fallback: ferr}
}

func (c *Controller) loadAndWait(ctx context.Context, q assets.Quality) error {
	w, err := c.session.load(q)
	if err != nil {
		return err
	}
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case err := <-w:
		return err
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrLoadTimeout, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) busyLocked() bool {
	return c.status.State == SwitchSwitching || c.status.State == SwitchFailed
}

func (c *Controller) setStatus(st Status) {
	c.mu.Lock()
	st.Pending = c.pending
	c.status = st
	c.mu.Unlock()
}
