package player

import (
	"encoding/json"
	"errors"

	"reelstream/internal/playback"
)

// message is one line from the mpv IPC socket: an event or a reply.
type message struct {
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
}

// translate maps an mpv event onto the media event vocabulary. Source is
// left for the caller.
func translate(msg message) (playback.Event, bool) {
	switch msg.Event {
	case "file-loaded":
		return playback.Event{Type: playback.EventLoadedMetadata}, true
	case "playback-restart":
		return playback.Event{Type: playback.EventCanPlay}, true
	case "end-file":
		switch msg.Reason {
		case "eof":
			return playback.Event{Type: playback.EventEnded}, true
		case "error":
			cause := msg.FileError
			if cause == "" {
				cause = "playback failed"
			}
			return playback.Event{Type: playback.EventError, Err: errors.New(cause)}, true
		}
		return playback.Event{}, false
	case "property-change":
		return translateProperty(msg.Name, msg.Data)
	}
	return playback.Event{}, false
}

func translateProperty(name string, data json.RawMessage) (playback.Event, bool) {
	// mpv sends null while a property is unavailable, e.g. before a file loads.
	if len(data) == 0 || string(data) == "null" {
		return playback.Event{}, false
	}
	switch name {
	case "time-pos":
		var pos float64
		if json.Unmarshal(data, &pos) != nil {
			return playback.Event{}, false
		}
		return playback.Event{Type: playback.EventTimeUpdate, Position: pos}, true
	case "duration":
		var d float64
		if json.Unmarshal(data, &d) != nil {
			return playback.Event{}, false
		}
		return playback.Event{Type: playback.EventDurationChange, Duration: d}, true
	case "pause":
		var paused bool
		if json.Unmarshal(data, &paused) != nil {
			return playback.Event{}, false
		}
		if paused {
			return playback.Event{Type: playback.EventPause}, true
		}
		return playback.Event{Type: playback.EventPlaying}, true
	case "paused-for-cache", "seeking":
		var on bool
		if json.Unmarshal(data, &on) != nil {
			return playback.Event{}, false
		}
		if on {
			return playback.Event{Type: playback.EventWaiting}, true
		}
		return playback.Event{Type: playback.EventCanPlay}, true
	}
	return playback.Event{}, false
}
