package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelstream/internal/assets"
	"reelstream/internal/playback"
	"reelstream/internal/player"
	"reelstream/internal/watch"
)

var (
	flagQuality string
	flagPlayer  string
)

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Watch a movie in mpv",
	Args:  cobra.ExactArgs(1),
	RunE:  watchRun,
}

func init() {
	watchCmd.Flags().StringVarP(&flagQuality, "quality", "q", "", "Preferred quality: 480 | 720 | 1080")
	watchCmd.Flags().StringVar(&flagPlayer, "player", "", "Path to the mpv binary")
}

func watchRun(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid movie id %q", args[0])
	}
	if flagQuality != "" {
		cfg.Quality = flagQuality
	}
	if flagPlayer != "" {
		cfg.PlayerPath = flagPlayer
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !player.Available(cfg.PlayerPath) {
		return fmt.Errorf("%s not found in PATH", cfg.PlayerPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mpv, err := player.Start(ctx, player.WithBinary(cfg.PlayerPath), player.WithLogger(log))
	if err != nil {
		return err
	}
	defer mpv.Close()

	timeout, _ := cfg.switchTimeout()
	opts := watch.Options{
		Preferred:     cfg.preferred(),
		BandwidthKbps: cfg.BandwidthKbps,
		SwitchTimeout: timeout,
		Autoplay:      true,
		Logger:        log,
	}
	if cfg.Probe {
		opts.Probe = watch.HeadProbe(nil)
	}
	v := watch.New(newCatalog(), mpv, opts)
	defer v.Close()

	return runWatch(ctx, v, id, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runWatch opens id and feeds line commands to the view until quit, EOF or
// ctx is done.
func runWatch(ctx context.Context, v *watch.View, id int64, in io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	out := &lockedWriter{w: w}
	// Open's error is reflected by the screen.
	_ = v.Open(ctx, id)
	watchControls(v, out)
	printScreen(out, v.Screen())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := dispatch(ctx, v, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// lockedWriter serializes status lines written from player callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func watchControls(v *watch.View, out io.Writer) {
	if c := v.Controls(); c != nil {
		c.OnChange(func(visible bool) {
			if visible {
				printStatus(out, v)
			}
		})
	}
}

// dispatch runs one command line against the view.
func dispatch(ctx context.Context, v *watch.View, line string, out io.Writer) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, arg := fields[0], ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "quit", "q!", "exit":
		return true, nil
	case "retry":
		err = v.Retry(ctx)
		watchControls(v, out)
		printScreen(out, v.Screen())
		return false, err
	case "home":
		return true, nil
	}

	s := v.Session()
	if s == nil {
		printScreen(out, v.Screen())
		return false, errors.New("nothing is playing")
	}
	if c := v.Controls(); c != nil {
		c.Activity()
	}

	switch cmd {
	case "play":
		err = v.Play()
	case "pause":
		err = s.Pause()
	case "seek":
		var secs float64
		if secs, err = strconv.ParseFloat(arg, 64); err == nil {
			err = s.Seek(secs)
		}
	case "vol":
		var vol float64
		if vol, err = strconv.ParseFloat(arg, 64); err == nil {
			err = s.SetVolume(vol)
		}
	case "mute":
		err = s.ToggleMute()
	case "rate":
		var r float64
		if r, err = strconv.ParseFloat(arg, 64); err == nil {
			err = s.SetPlaybackRate(r)
		}
	case "q", "quality":
		q, ok := assets.ParseQuality(arg)
		if !ok {
			return false, fmt.Errorf("unknown quality %q", arg)
		}
		err = v.SwitchQuality(ctx, q)
		if errors.Is(err, playback.ErrSwitchQueued) {
			fmt.Fprintf(out, "switch to %s queued\n", q)
			err = nil
		}
	case "fs":
		err = s.ToggleFullscreen()
	case "pip":
		err = s.TogglePictureInPicture()
	case "menu":
		if c := v.Controls(); c != nil {
			c.OpenMenu("quality")
		}
		printQualities(out, s)
	case "close":
		if c := v.Controls(); c != nil {
			c.CloseMenu("quality")
		}
	case "status":
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}

	var envErr *playback.EnvironmentError
	if errors.As(err, &envErr) {
		fmt.Fprintf(out, "%v (playback continues)\n", envErr)
		err = nil
	}
	if sc := v.Screen(); sc.Terminal() || sc.Kind == watch.ScreenAutoplayBlocked {
		printScreen(out, sc)
	} else if c := v.Controls(); c == nil || c.Visible() {
		printStatus(out, v)
	}
	return false, err
}

func printQualities(out io.Writer, s *playback.Session) {
	cur := s.State().Quality
	for _, variant := range s.Variants() {
		mark := " "
		if variant.Quality == cur {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\n", mark, variant.Quality)
	}
}

func printStatus(out io.Writer, v *watch.View) {
	s := v.Session()
	if s == nil {
		return
	}
	st := s.State()
	state := "paused"
	switch {
	case st.Buffering:
		state = "buffering"
	case st.Ended:
		state = "ended"
	case st.Playing:
		state = "playing"
	}
	vol := fmt.Sprintf("%.0f%%", st.Volume*100)
	if st.Muted {
		vol = "muted"
	}
	dur := "--:--"
	if st.DurationKnown {
		dur = clock(st.Duration)
	}
	fmt.Fprintf(out, "[%s] %s / %s  %s  vol %s  x%.2g\n", state, clock(st.Position), dur, st.Quality, vol, st.Rate)
}

func printScreen(out io.Writer, sc watch.Screen) {
	switch sc.Kind {
	case watch.ScreenPlaying, watch.ScreenLoading:
		fmt.Fprintf(out, "%s: %s (%s)\n", sc.Kind, sc.Title, sc.Quality)
		return
	}
	fmt.Fprintf(out, "%s", sc.Kind)
	if sc.Title != "" {
		fmt.Fprintf(out, ": %s", sc.Title)
	}
	if sc.Cause != "" {
		fmt.Fprintf(out, ": %s", sc.Cause)
	}
	fmt.Fprintln(out)
	if len(sc.Actions) > 0 {
		acts := make([]string, len(sc.Actions))
		for i, a := range sc.Actions {
			acts[i] = string(a)
		}
		fmt.Fprintf(out, "actions: %s\n", strings.Join(acts, ", "))
	}
}

func clock(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	total := int(secs)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
