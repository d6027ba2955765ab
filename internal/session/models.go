package session

import (
	"encoding/json"
	"time"
)

// SessionID uniquely identifies a playback session.
type SessionID string

// RecordingID uniquely identifies a stored recording.
type RecordingID string

// State is the externally visible playback state of a session.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Recording is a raw asciicast stored in the library.
type Recording struct {
	ID        RecordingID `json:"id"`
	Title     string      `json:"title"`
	Data      string      `json:"data,omitempty"`
	Cols      int         `json:"cols"`
	Rows      int         `json:"rows"`
	Frames    int         `json:"frames"`
	CreatedAt time.Time   `json:"created_at"`
}

// Summary returns a copy of r without the raw data.
func (r *Recording) Summary() Recording {
	s := *r
	s.Data = ""
	return s
}

// CreateRequest is the body of POST /sessions.
// Exactly one of RecordingID and URL must be set.
type CreateRequest struct {
	RecordingID   RecordingID `json:"recording_id"`
	URL           string      `json:"url"`
	IdleTimeLimit float64     `json:"idle_time_limit"`
	StartAt       float64     `json:"start_at"`
	// Loop is 0 to play once, -1 to loop forever, or the number of plays.
	Loop     int  `json:"loop"`
	Autoplay bool `json:"autoplay"`
}

// Status is a point-in-time view of a session.
type Status struct {
	ID          SessionID   `json:"id"`
	RecordingID RecordingID `json:"recording_id,omitempty"`
	URL         string      `json:"url,omitempty"`
	State       State       `json:"state"`
	CurrentTime float64     `json:"current_time"`
	Duration    float64     `json:"duration"`
	Cols        int         `json:"cols"`
	Rows        int         `json:"rows"`
	PlayCount   int         `json:"play_count"`
	Viewers     int         `json:"viewers"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Command is a transport control sent by websocket viewers.
type Command struct {
	Action string          `json:"action"`       // play, pause, step, seek
	To     json.RawMessage `json:"to,omitempty"` // seconds, or a string such as "50%" or ">>"
}

// Event is a text message pushed to websocket viewers.
type Event struct {
	Type   string `json:"type"` // "state"
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}
