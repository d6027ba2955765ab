package playback

import (
	"iter"
	"log/slog"
	"slices"
)

// Batch merges frames that arrive closer than minFrameTime to the frame
// currently buffered. The buffered frame keeps its time and accumulates the
// payloads in arrival order; it is emitted once a frame with a larger gap
// arrives, and always at the end of the input.
//
// The returned sequence is lazy and should be ranged over once.
// If minFrameTime <= 0, DefaultMinFrameTime is used.
func Batch(frames iter.Seq[Frame], minFrameTime float64, log *slog.Logger) iter.Seq[Frame] {
	if minFrameTime <= 0 {
		minFrameTime = DefaultMinFrameTime
	}

	return func(yield func(Frame) bool) {
		var (
			buffered Frame
			have     bool
			in, out  int
		)

		defer func() {
			if log != nil {
				log.Debug("frames batched",
					slog.Int("input_frames", in),
					slog.Int("output_frames", out))
			}
		}()

		for f := range frames {
			in++
			if !have {
				buffered, have = f, true
				continue
			}
			if f.Time-buffered.Time < minFrameTime {
				buffered.Data += f.Data
				continue
			}
			out++
			if !yield(buffered) {
				return
			}
			buffered = f
		}

		if have {
			out++
			yield(buffered)
		}
	}
}

// BatchSlice is a convenience wrapper around Batch for materialized input.
func BatchSlice(frames []Frame, minFrameTime float64, log *slog.Logger) []Frame {
	return slices.Collect(Batch(slices.Values(frames), minFrameTime, log))
}
