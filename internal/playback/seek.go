package playback

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	smallSeekStep    = 5.0
	largeSeekPercent = 0.1
)

// SeekTarget is a position to seek to, resolved against the current time and
// the recording duration. The implementations in this package are the only
// ones.
type SeekTarget interface {
	resolve(current, duration float64) float64
}

// Absolute is an offset in seconds from the start of the recording.
type Absolute float64

// Percentage is a position expressed as a percentage (0-100) of the duration.
type Percentage float64

// RelativeSmall moves five seconds backward or forward.
type RelativeSmall struct{ Forward bool }

// RelativeLarge moves a tenth of the duration backward or forward.
type RelativeLarge struct{ Forward bool }

func (a Absolute) resolve(_, _ float64) float64 { return float64(a) }

func (p Percentage) resolve(_, duration float64) float64 {
	return float64(p) / 100 * duration
}

func (r RelativeSmall) resolve(current, _ float64) float64 {
	if r.Forward {
		return current + smallSeekStep
	}
	return current - smallSeekStep
}

func (r RelativeLarge) resolve(current, duration float64) float64 {
	if r.Forward {
		return current + largeSeekPercent*duration
	}
	return current - largeSeekPercent*duration
}

// ParseSeekTarget converts the textual forms accepted at the API boundary:
// "<<", ">>", "<<<", ">>>", "N%" and a plain number of seconds.
func ParseSeekTarget(s string) (SeekTarget, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "<<":
		return RelativeSmall{Forward: false}, nil
	case ">>":
		return RelativeSmall{Forward: true}, nil
	case "<<<":
		return RelativeLarge{Forward: false}, nil
	case ">>>":
		return RelativeLarge{Forward: true}, nil
	}

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err == nil && math.IsNaN(v) {
			err = strconv.ErrSyntax
		}
		if err != nil {
			return nil, fmt.Errorf("invalid seek percentage %q: %w", s, err)
		}
		return Percentage(v), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err == nil && math.IsNaN(v) {
		err = strconv.ErrSyntax
	}
	if err != nil {
		return nil, fmt.Errorf("invalid seek target %q: %w", s, err)
	}
	return Absolute(v), nil
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
