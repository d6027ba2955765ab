package playback

import "iter"

// Compress rewrites frame times so that no gap between consecutive frames is
// longer than idleTimeLimit. Every excess second is accumulated into a shift
// applied to all later frames. Gaps that lie before startAt also move the
// returned effective start, so that it still points at the same moment of the
// recording.
//
// An idleTimeLimit <= 0 means unbounded. An empty result yields
// ErrEmptyRecording.
func Compress(frames iter.Seq[Frame], idleTimeLimit, startAt float64) (Timeline, float64, error) {
	if idleTimeLimit <= 0 {
		idleTimeLimit = unbounded()
	}

	var timeline Timeline
	var prevTime, shift float64
	effectiveStartAt := startAt

	for f := range frames {
		excess := f.Time - prevTime - idleTimeLimit
		prevTime = f.Time

		if excess > 0 {
			shift += excess
			if f.Time < startAt {
				effectiveStartAt -= excess
			}
		}

		timeline = append(timeline, Frame{Time: f.Time - shift, Data: f.Data})
	}

	if len(timeline) == 0 {
		return nil, 0, ErrEmptyRecording
	}

	return timeline, effectiveStartAt, nil
}
