package watch

import (
	"context"
	"errors"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
	"reelstream/internal/playback"
)

type ScreenKind string

const (
	ScreenLoading         ScreenKind = "loading"
	ScreenPlaying         ScreenKind = "playing"
	ScreenFetchError      ScreenKind = "fetch_error"
	ScreenNoSource        ScreenKind = "no_source"
	ScreenPlaybackError   ScreenKind = "playback_error"
	ScreenAutoplayBlocked ScreenKind = "autoplay_blocked"
	ScreenClosed          ScreenKind = "closed"
)

type Action string

const (
	ActionRetry   Action = "retry"
	ActionHome    Action = "home"
	ActionPlay    Action = "play"
	ActionQuality Action = "quality"
)

// Screen is what the view shows. Error kinds always offer retry and home.
type Screen struct {
	Kind      ScreenKind       `json:"kind"`
	MovieID   int64            `json:"movieId,omitempty"`
	Title     string           `json:"title,omitempty"`
	Cause     string           `json:"cause,omitempty"`
	Quality   assets.Quality   `json:"quality,omitempty"`
	Qualities []assets.Quality `json:"qualities,omitempty"`
	Buffering bool             `json:"buffering,omitempty"`
	Actions   []Action         `json:"actions,omitempty"`
}

// Terminal reports whether the screen waits on the user.
func (s Screen) Terminal() bool {
	switch s.Kind {
	case ScreenFetchError, ScreenNoSource, ScreenPlaybackError:
		return true
	}
	return false
}

// Has reports whether a is offered.
func (s Screen) Has(a Action) bool {
	for _, x := range s.Actions {
		if x == a {
			return true
		}
	}
	return false
}

func fetchCause(err error) string {
	switch {
	case catalog.IsNotFound(err):
		return "This movie could not be found."
	case errors.Is(err, catalog.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "The movie service took too long to answer."
	case errors.Is(err, catalog.ErrBadResponse):
		return "The movie service sent an unreadable answer."
	default:
		return "The movie could not be loaded. Check your connection and try again."
	}
}

func playbackCause(err error) string {
	var swErr *playback.QualitySwitchError
	switch {
	case errors.As(err, &swErr):
		return "Neither " + swErr.To.String() + " nor " + swErr.From.String() + " could be played."
	case errors.Is(err, playback.ErrLoadTimeout):
		return "The video took too long to start."
	case err != nil:
		return "The video could not be played: " + err.Error()
	default:
		return "The video could not be played."
	}
}
