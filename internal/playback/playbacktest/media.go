// Package playbacktest provides a scripted playback.Media for tests.
package playbacktest

import (
	"errors"
	"fmt"
	"sync"

	"reelstream/internal/playback"
)

// DefaultDuration is reported for sources without an entry in Durations.
const DefaultDuration = 100.0

// Media emits events synchronously from inside its methods. Loads announce
// metadata and canplay unless the source is listed in Fail or Silent.
type Media struct {
	mu       sync.Mutex
	handler  func(playback.Event)
	source   string
	position float64
	calls    []string
	loads    []string

	durations     map[string]float64
	fail          map[string]error
	silent        map[string]bool
	playErr       error
	fullscreenErr error
	pipErr        error
	closed        bool
}

func New() *Media {
	return &Media{
		durations: make(map[string]float64),
		fail:      make(map[string]error),
		silent:    make(map[string]bool),
	}
}

// SetDuration fixes the duration reported for src.
func (m *Media) SetDuration(src string, d float64) {
	m.mu.Lock()
	m.durations[src] = d
	m.mu.Unlock()
}

// FailOn makes every load of src report err.
func (m *Media) FailOn(src string, err error) {
	if err == nil {
		err = errors.New("decode error")
	}
	m.mu.Lock()
	m.fail[src] = err
	m.mu.Unlock()
}

func (m *Media) ClearFailure(src string) {
	m.mu.Lock()
	delete(m.fail, src)
	m.mu.Unlock()
}

// Silence makes loads of src report nothing until Emit is called.
func (m *Media) Silence(src string, on bool) {
	m.mu.Lock()
	m.silent[src] = on
	m.mu.Unlock()
}

func (m *Media) RejectPlay(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

func (m *Media) FailFullscreen(err error) {
	m.mu.Lock()
	m.fullscreenErr = err
	m.mu.Unlock()
}

func (m *Media) FailPictureInPicture(err error) {
	m.mu.Lock()
	m.pipErr = err
	m.mu.Unlock()
}

// Emit delivers ev; an empty Source means the current one.
func (m *Media) Emit(ev playback.Event) {
	m.mu.Lock()
	if ev.Source == "" {
		ev.Source = m.source
	}
	if ev.Type == playback.EventTimeUpdate {
		m.position = ev.Position
	}
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Advance moves playback to pos and reports a time update.
func (m *Media) Advance(pos float64) {
	m.Emit(playback.Event{Type: playback.EventTimeUpdate, Position: pos})
}

// Calls lists every method call in order, e.g. "load a.mp4", "seek 42.0".
func (m *Media) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Loads lists loaded sources in order.
func (m *Media) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

func (m *Media) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

func (m *Media) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Media) Attach(h func(playback.Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler != nil {
		return playback.ErrMediaInUse
	}
	m.handler = h
	m.calls = append(m.calls, "attach")
	return nil
}

func (m *Media) Detach() {
	m.mu.Lock()
	m.handler = nil
	m.source = ""
	m.calls = append(m.calls, "detach")
	m.mu.Unlock()
}

func (m *Media) Load(src string) error {
	m.mu.Lock()
	m.record("load " + src)
	m.loads = append(m.loads, src)
	m.source = src
	m.position = 0
	failErr := m.fail[src]
	silent := m.silent[src]
	dur, ok := m.durations[src]
	if !ok {
		dur = DefaultDuration
	}
	m.mu.Unlock()

	switch {
	case silent:
	case failErr != nil:
		m.Emit(playback.Event{Type: playback.EventError, Source: src, Err: failErr})
	default:
		m.Emit(playback.Event{Type: playback.EventLoadedMetadata, Source: src, Duration: dur})
		m.Emit(playback.Event{Type: playback.EventCanPlay, Source: src})
	}
	return nil
}

func (m *Media) Play() error {
	m.mu.Lock()
	m.record("play")
	err := m.playErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Emit(playback.Event{Type: playback.EventPlaying})
	return nil
}

func (m *Media) Pause() error {
	m.mu.Lock()
	m.record("pause")
	m.mu.Unlock()
	m.Emit(playback.Event{Type: playback.EventPause})
	return nil
}

func (m *Media) Seek(seconds float64) error {
	m.mu.Lock()
	m.record(fmt.Sprintf("seek %.1f", seconds))
	m.mu.Unlock()
	m.Advance(seconds)
	return nil
}

func (m *Media) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("volume %.2f", v))
	return nil
}

func (m *Media) SetMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("muted %t", muted))
	return nil
}

func (m *Media) SetRate(r float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("rate %.2f", r))
	return nil
}

func (m *Media) SetFullscreen(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("fullscreen %t", on))
	return m.fullscreenErr
}

func (m *Media) SetPictureInPicture(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("pip %t", on))
	return m.pipErr
}

func (m *Media) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("close")
	m.closed = true
	return nil
}

func (m *Media) record(call string) {
	m.calls = append(m.calls, call)
}

// Position is the last position reported or sought to.
func (m *Media) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

var _ playback.Media = (*Media)(nil)
