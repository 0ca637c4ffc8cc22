package playback

import (
	"sync"
	"time"
)

// DefaultHideDelay is the inactivity period before controls hide.
const DefaultHideDelay = 3 * time.Second

// Timer is the part of *time.Timer the controls need.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Controls tracks whether player controls are shown. They hide after a
// period of inactivity while playing; paused playback or an open menu keeps
// them visible.
type Controls struct {
	delay time.Duration
	after AfterFunc

	mu       sync.Mutex
	visible  bool
	playing  bool
	menus    map[string]bool
	timer    Timer
	gen      uint64
	stopped  bool
	onChange func(visible bool)
}

type ControlsOption func(*Controls)

func WithHideDelay(d time.Duration) ControlsOption {
	return func(c *Controls) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithAfterFunc replaces the timer source, for tests.
func WithAfterFunc(fn AfterFunc) ControlsOption {
	return func(c *Controls) {
		if fn != nil {
			c.after = fn
		}
	}
}

func NewControls(opts ...ControlsOption) *Controls {
	c := &Controls{
		delay:   DefaultHideDelay,
		after:   realAfterFunc,
		visible: true,
		menus:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn for visibility changes. fn runs without the lock held.
func (c *Controls) OnChange(fn func(visible bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controls) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Activity is a pointer move or click: show and restart the timer.
func (c *Controls) Activity() {
	c.mu.Lock()
	fire := c.showLocked()
	c.armLocked()
	c.mu.Unlock()
	fire()
}

func (c *Controls) SetPlaying(playing bool) {
	c.mu.Lock()
	c.playing = playing
	fire := func() {}
	if playing {
		c.armLocked()
	} else {
		c.cancelLocked()
		fire = c.showLocked()
	}
	c.mu.Unlock()
	fire()
}

// OpenMenu shows the controls and suspends auto-hide until every open menu
// is closed.
func (c *Controls) OpenMenu(name string) {
	c.mu.Lock()
	c.menus[name] = true
	c.cancelLocked()
	fire := c.showLocked()
	c.mu.Unlock()
	fire()
}

func (c *Controls) CloseMenu(name string) {
	c.mu.Lock()
	delete(c.menus, name)
	c.armLocked()
	c.mu.Unlock()
}

// MenuOpen reports whether any menu is open.
func (c *Controls) MenuOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.menus) > 0
}

// Stop cancels the timer. The controls stay in their last state.
func (c *Controls) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.cancelLocked()
	c.mu.Unlock()
}

func (c *Controls) armLocked() {
	c.cancelLocked()
	if c.stopped || !c.playing || len(c.menus) > 0 {
		return
	}
	gen := c.gen
	c.timer = c.after(c.delay, func() { c.expire(gen) })
}

func (c *Controls) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controls) expire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen || !c.playing || len(c.menus) > 0 || !c.visible {
		c.mu.Unlock()
		return
	}
	c.visible = false
	c.timer = nil
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(false)
	}
}

// showLocked returns the notification to run once the lock is released.
func (c *Controls) showLocked() func() {
	if c.visible {
		return func() {}
	}
	c.visible = true
	fn := c.onChange
	return func() {
		if fn != nil {
			fn(true)
		}
	}
}
