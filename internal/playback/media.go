// Package playback owns one media playback instance: its state, the
// commands that drive it, quality switching and controls visibility.
package playback

// EventType names a media pipeline notification.
type EventType string

const (
	EventLoadedMetadata EventType = "loadedmetadata"
	EventDurationChange EventType = "durationchange"
	EventTimeUpdate     EventType = "timeupdate"
	EventWaiting        EventType = "waiting"
	EventCanPlay        EventType = "canplay"
	EventPlaying        EventType = "playing"
	EventPause          EventType = "pause"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

// Event is delivered by the media in the order its pipeline emits them.
// Source identifies the URL the event belongs to; events for a source other
// than the current one are dropped.
type Event struct {
	Type     EventType
	Source   string
	Position float64
	Duration float64
	Err      error
}

// Media is the capability surface of a single player element. Implementations
// may call the attached handler synchronously from inside any method, so a
// session never holds its own lock while calling into Media.
type Media interface {
	// Attach registers the event handler. A second Attach without Detach
	// returns ErrMediaInUse.
	Attach(handler func(Event)) error
	// Detach stops the current source and drops the handler.
	Detach()
	Load(src string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	SetMuted(muted bool) error
	SetRate(r float64) error
	SetFullscreen(on bool) error
	SetPictureInPicture(on bool) error
	Close() error
}
