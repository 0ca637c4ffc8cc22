package playback

import (
	"fmt"

	"reelstream/internal/assets"
)

// Phase is the lifecycle position of a session's current source.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseErrored Phase = "errored"
	PhaseClosed  Phase = "closed"
)

type trigger string

const (
	trigLoad     trigger = "load"
	trigMetadata trigger = "metadata"
	trigError    trigger = "error"
	trigClose    trigger = "close"
)

type transition struct {
	from Phase
	on   trigger
	to   Phase
}

// Pairs missing from the table are ignored: a late metadata event on an
// errored source does not revive it.
var transitions = []transition{
	{PhaseIdle, trigLoad, PhaseLoading},
	{PhaseLoading, trigLoad, PhaseLoading},
	{PhaseReady, trigLoad, PhaseLoading},
	{PhaseErrored, trigLoad, PhaseLoading},

	{PhaseLoading, trigMetadata, PhaseReady},

	{PhaseLoading, trigError, PhaseErrored},
	{PhaseReady, trigError, PhaseErrored},

	{PhaseIdle, trigClose, PhaseClosed},
	{PhaseLoading, trigClose, PhaseClosed},
	{PhaseReady, trigClose, PhaseClosed},
	{PhaseErrored, trigClose, PhaseClosed},
}

var phaseTable = buildTable(transitions)

func buildTable(ts []transition) map[string]Phase {
	idx := make(map[string]Phase, len(ts))
	for _, t := range ts {
		k := key(t.from, t.on)
		if _, dup := idx[k]; dup {
			panic(fmt.Sprintf("duplicate transition: %s|%s", t.from, t.on))
		}
		idx[k] = t.to
	}
	return idx
}

func next(from Phase, on trigger) (Phase, bool) {
	to, ok := phaseTable[key(from, on)]
	return to, ok
}

func key(from Phase, on trigger) string {
	return string(from) + "|" + string(on)
}

// AllowedRates is the fixed set accepted by SetPlaybackRate.
var AllowedRates = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

func rateAllowed(r float64) bool {
	for _, a := range AllowedRates {
		if a == r {
			return true
		}
	}
	return false
}

// State is a snapshot of a session. Seq increases with every change so
// subscribers can drop snapshots that arrive out of order.
type State struct {
	Phase   Phase
	Quality assets.Quality
	Source  string

	Playing          bool
	Muted            bool
	Buffering        bool
	Fullscreen       bool
	PictureInPicture bool
	AutoplayBlocked  bool
	Ended            bool

	Volume        float64
	Rate          float64
	Position      float64
	Duration      float64
	DurationKnown bool

	// Cause is set while Phase is PhaseErrored.
	Cause error
	Seq   uint64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampPosition bounds pos by the known duration.
func (s State) clampPosition(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if s.DurationKnown && pos > s.Duration {
		return s.Duration
	}
	return pos
}
