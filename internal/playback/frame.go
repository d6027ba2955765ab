package playback

import "math"

// ResetSequence is fed to the terminal whenever playback restarts from the
// first frame (backward seek or loop restart). Consumers must treat it as
// "discard all prior output".
const ResetSequence = "\x1bc"

// DefaultMinFrameTime is the minimum spacing between emitted frames (60 fps).
const DefaultMinFrameTime = 1.0 / 60

// Frame is a single chunk of terminal output at a time offset in seconds.
type Frame struct {
	Time float64
	Data string
}

// Timeline is the ordered, time-adjusted frame list the engine plays.
// It is never mutated after it has been built.
type Timeline []Frame

// Duration returns the time of the last frame, or 0 for an empty timeline.
func (t Timeline) Duration() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Time
}

// Recording is the parser's view of a raw recording.
type Recording struct {
	Cols   int
	Rows   int
	Frames []Frame
	// IdleTimeLimit is the limit stored in the recording header, or 0 when
	// the recording does not carry one.
	IdleTimeLimit float64
}

// RecordingMeta describes an initialized recording.
type RecordingMeta struct {
	Cols          int
	Rows          int
	Duration      float64
	IdleTimeLimit float64
}

// Info is returned by Engine.Init.
type Info struct {
	Cols     int     `json:"cols"`
	Rows     int     `json:"rows"`
	Duration float64 `json:"duration"`
}

func unbounded() float64 { return math.Inf(1) }
