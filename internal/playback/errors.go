package playback

import (
	"errors"
	"fmt"

	"reelstream/internal/assets"
)

var (
	ErrClosed             = errors.New("playback: session closed")
	ErrNotReady           = errors.New("playback: media not ready")
	ErrInvalidValue       = errors.New("playback: invalid value")
	ErrRateNotAllowed     = errors.New("playback: playback rate not allowed")
	ErrAutoplayRejected   = errors.New("playback: autoplay rejected")
	ErrQualityUnavailable = errors.New("playback: quality not available")
	ErrSwitchQueued       = errors.New("playback: switch queued behind the one in flight")
	ErrSwitchInFlight     = errors.New("playback: a source load is already in flight")
	ErrLoadTimeout        = errors.New("playback: source did not become ready")
	ErrMediaInUse         = errors.New("playback: media already attached to a session")
	ErrUnsupported        = errors.New("playback: not supported by this media")

	// ErrNoPlayableSource is shared with the resolver so callers can match either.
	ErrNoPlayableSource = assets.ErrNoPlayableSource

	errSuperseded = errors.New("playback: load superseded")
)

// PlaybackError is a decode or network failure reported by the media while
// a source was loading or playing.
type PlaybackError struct {
	Quality assets.Quality
	Source  string
	Err     error
}

func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("playback error on %s", e.Quality)
	}
	return fmt.Sprintf("playback error on %s: %v", e.Quality, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// QualitySwitchError reports a failed switch. Recovered is true when the
// session fell back to the previous quality and is playable again.
type QualitySwitchError struct {
	From      assets.Quality
	To        assets.Quality
	Cause     error
	Fallback  error
	Recovered bool
}

func (e *QualitySwitchError) Error() string {
	if e.Recovered {
		return fmt.Sprintf("switch %s -> %s failed, back on %s: %v", e.From, e.To, e.From, e.Cause)
	}
	if e.Fallback != nil {
		return fmt.Sprintf("switch %s -> %s failed: %v; fallback failed: %v", e.From, e.To, e.Cause, e.Fallback)
	}
	return fmt.Sprintf("switch %s -> %s failed: %v", e.From, e.To, e.Cause)
}

func (e *QualitySwitchError) Unwrap() []error {
	if e.Fallback != nil {
		return []error{e.Cause, e.Fallback}
	}
	return []error{e.Cause}
}

// EnvironmentError is a non-fatal failure of an environment capability such
// as fullscreen. Playback is unaffected.
type EnvironmentError struct {
	Op  string
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }
