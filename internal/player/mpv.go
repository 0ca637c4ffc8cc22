// Package player drives an external mpv process as a playback.Media.
package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reelstream/internal/playback"
)

var ErrExited = errors.New("player: mpv exited")

const replyTimeout = 3 * time.Second

// observed properties, keyed by observe id.
var observed = []string{"time-pos", "duration", "pause", "paused-for-cache", "seeking"}

// MPV talks to mpv over its JSON IPC socket. mpv is started idle and kept
// open between loads, so one process serves every source of a session.
type MPV struct {
	log  zerolog.Logger
	cmd  *exec.Cmd
	dir  string
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(playback.Event)
	// source is the file mpv is playing; queued holds loads whose
	// start-file has not arrived yet, in request order.
	source  string
	queued  []string
	nextID  int64
	pending map[int64]chan error

	done      chan struct{}
	closeOnce sync.Once
}

type config struct {
	binary string
	args   []string
	log    zerolog.Logger
}

type Option func(*config)

func WithBinary(path string) Option {
	return func(c *config) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithArgs appends extra mpv command line arguments.
func WithArgs(args ...string) Option {
	return func(c *config) { c.args = append(c.args, args...) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// Available reports whether the mpv binary can be found.
func Available(binary string) bool {
	if binary == "" {
		binary = "mpv"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Start launches mpv and connects to its IPC socket.
func Start(ctx context.Context, opts ...Option) (*MPV, error) {
	cfg := config{binary: "mpv", log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, err := os.MkdirTemp("", "reelstream-mpv-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir for mpv socket: %w", err)
	}
	socket := filepath.Join(dir, "socket")
	args := append([]string{
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--pause",
		"--really-quiet",
		"--input-ipc-server=" + socket,
	}, cfg.args...)

	cmd := exec.Command(cfg.binary, args...)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("starting mpv: %w", err)
	}

	conn, err := dialSocket(ctx, socket)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		os.RemoveAll(dir)
		return nil, err
	}

	m := newMPV(conn, cfg.log)
	m.cmd = cmd
	m.dir = dir
	go func() {
		err := cmd.Wait()
		m.log.Debug().Err(err).Msg("mpv exited")
		m.shutdown()
	}()
	if err := m.observe(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			conn, err := d.DialContext(ctx, "unix", path)
			if err == nil {
				return conn, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("mpv ipc socket %s did not appear", path)
		case <-ticker.C:
		}
	}
}

func newMPV(conn net.Conn, log zerolog.Logger) *MPV {
	m := &MPV{
		log:     log.With().Str("component", "mpv").Logger(),
		conn:    conn,
		pending: make(map[int64]chan error),
		done:    make(chan struct{}),
	}
	go m.readLoop()
	return m
}

func (m *MPV) observe() error {
	for i, name := range observed {
		if err := m.command("observe_property", i+1, name); err != nil {
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}
	return nil
}

func (m *MPV) Attach(h func(playback.Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler != nil {
		return playback.ErrMediaInUse
	}
	m.handler = h
	return nil
}

func (m *MPV) Detach() {
	m.mu.Lock()
	m.handler = nil
	m.source = ""
	m.queued = nil
	m.mu.Unlock()
	if err := m.command("stop"); err != nil && !errors.Is(err, ErrExited) {
		m.log.Debug().Err(err).Msg("stop failed")
	}
}

// Load replaces the current file. Events keep the previous source until mpv
// reports start-file for src.
func (m *MPV) Load(src string) error {
	m.mu.Lock()
	m.queued = append(m.queued, src)
	m.mu.Unlock()
	err := m.command("loadfile", src, "replace")
	if err != nil {
		m.unqueue(src)
	}
	return err
}

func (m *MPV) unqueue(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.queued) - 1; i >= 0; i-- {
		if m.queued[i] == src {
			m.queued = append(m.queued[:i], m.queued[i+1:]...)
			return
		}
	}
}

// started moves the oldest queued load to the current source.
func (m *MPV) started() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queued) == 0 {
		m.log.Debug().Msg("start-file without a pending load")
		return
	}
	m.source, m.queued = m.queued[0], m.queued[1:]
}

func (m *MPV) Play() error  { return m.command("set_property", "pause", false) }
func (m *MPV) Pause() error { return m.command("set_property", "pause", true) }

func (m *MPV) Seek(seconds float64) error {
	return m.command("seek", seconds, "absolute")
}

// SetVolume maps [0, 1] onto mpv's percent scale.
func (m *MPV) SetVolume(v float64) error {
	return m.command("set_property", "volume", v*100)
}

func (m *MPV) SetMuted(muted bool) error { return m.command("set_property", "mute", muted) }
func (m *MPV) SetRate(r float64) error   { return m.command("set_property", "speed", r) }

func (m *MPV) SetFullscreen(on bool) error {
	return m.command("set_property", "fullscreen", on)
}

// SetPictureInPicture approximates PiP with an always-on-top window.
func (m *MPV) SetPictureInPicture(on bool) error {
	return m.command("set_property", "ontop", on)
}

// Close quits mpv and removes the socket directory.
func (m *MPV) Close() error {
	err := m.command("quit")
	if errors.Is(err, ErrExited) {
		err = nil
	}
	if m.cmd != nil {
		select {
		case <-m.done:
		case <-time.After(replyTimeout):
			_ = m.cmd.Process.Kill()
		}
	}
	m.shutdown()
	if m.dir != "" {
		os.RemoveAll(m.dir)
	}
	return err
}

func (m *MPV) shutdown() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.conn.Close()
		m.mu.Lock()
		for id, ch := range m.pending {
			ch <- ErrExited
			delete(m.pending, id)
		}
		m.mu.Unlock()
	})
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// command sends one IPC command and waits for mpv's reply.
func (m *MPV) command(args ...any) error {
	select {
	case <-m.done:
		return ErrExited
	default:
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	reply := make(chan error, 1)
	m.pending[id] = reply
	m.mu.Unlock()

	data, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		m.forget(id)
		return err
	}
	data = append(data, '\n')

	m.writeMu.Lock()
	_, err = m.conn.Write(data)
	m.writeMu.Unlock()
	if err != nil {
		m.forget(id)
		return fmt.Errorf("mpv ipc write: %w", err)
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrExited
	case <-timer.C:
		m.forget(id)
		return fmt.Errorf("mpv did not answer %v", args[0])
	}
}

func (m *MPV) forget(id int64) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func (m *MPV) readLoop() {
	defer m.shutdown()
	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event == "" && msg.RequestID != 0 {
			m.resolve(msg)
			continue
		}
		if msg.Event == "start-file" {
			m.started()
			continue
		}
		ev, ok := translate(msg)
		if !ok {
			continue
		}
		m.mu.Lock()
		h := m.handler
		ev.Source = m.source
		m.mu.Unlock()
		if h != nil {
			h(ev)
		}
	}
}

func (m *MPV) resolve(msg message) {
	m.mu.Lock()
	ch, ok := m.pending[msg.RequestID]
	delete(m.pending, msg.RequestID)
	m.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != "" && msg.Error != "success" {
		ch <- fmt.Errorf("mpv: %s", msg.Error)
		return
	}
	ch <- nil
}
