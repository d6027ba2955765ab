package playback

import (
	"errors"
	"log/slog"
	"math"
	"slices"
	"strings"
	"testing"
)

func TestBatch_merges_close_frames(t *testing.T) {
	in := []Frame{{0, "a"}, {0.005, "b"}, {1.0, "c"}}
	got := BatchSlice(in, 1.0/60, nil)

	want := []Frame{{0, "ab"}, {1.0, "c"}}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBatch_keeps_buffered_time(t *testing.T) {
	// Each frame is within the interval of its predecessor, but only the
	// first two are within the interval of the buffered frame.
	in := []Frame{{0, "a"}, {0.01, "b"}, {0.02, "c"}}
	got := BatchSlice(in, 0.015, nil)

	want := []Frame{{0, "ab"}, {0.02, "c"}}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBatch_conserves_payloads(t *testing.T) {
	in := []Frame{{0, "x"}, {0.001, "y"}, {0.3, "z"}, {0.31, "1"}, {2, "2"}, {2.0001, "3"}}
	var want strings.Builder
	for _, f := range in {
		want.WriteString(f.Data)
	}

	for _, mft := range []float64{0.0001, 1.0 / 60, 0.05, 1, 100} {
		var got strings.Builder
		for _, f := range BatchSlice(in, mft, nil) {
			got.WriteString(f.Data)
		}
		if got.String() != want.String() {
			t.Errorf("minFrameTime %v: expected %q, got %q", mft, want.String(), got.String())
		}
	}
}

func TestBatch_empty_and_single(t *testing.T) {
	if got := BatchSlice(nil, 0, nil); len(got) != 0 {
		t.Errorf("expected no frames, got %v", got)
	}
	got := BatchSlice([]Frame{{3, "only"}}, 0, nil)
	if !slices.Equal(got, []Frame{{3, "only"}}) {
		t.Errorf("single frame should be flushed, got %v", got)
	}
}

func TestBatch_stops_when_consumer_stops(t *testing.T) {
	in := []Frame{{0, "a"}, {1, "b"}, {2, "c"}}
	n := 0
	for range Batch(slices.Values(in), 0, slog.New(slog.DiscardHandler)) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected to stop after one frame, got %d", n)
	}
}

func TestCompress_idle_limit(t *testing.T) {
	in := []Frame{{0, "a"}, {5, "b"}, {20, "c"}, {21, "d"}}
	tl, start, err := Compress(slices.Values(in), 2, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	var times []float64
	for _, f := range tl {
		times = append(times, f.Time)
	}
	if want := []float64{0, 2, 4, 5}; !slices.Equal(times, want) {
		t.Errorf("expected times %v, got %v", want, times)
	}
	if start != 0 {
		t.Errorf("expected start 0, got %v", start)
	}
	if tl.Duration() != 5 {
		t.Errorf("expected duration 5, got %v", tl.Duration())
	}
}

func TestCompress_shifts_start(t *testing.T) {
	in := []Frame{{0, "a"}, {5, "b"}, {20, "c"}, {21, "d"}}

	_, start, _ := Compress(slices.Values(in), 2, 21)
	if start != 5 {
		t.Errorf("start after both gaps: expected 5, got %v", start)
	}

	_, start, _ = Compress(slices.Values(in), 2, 10)
	if start != 7 {
		t.Errorf("start between gaps: expected 7, got %v", start)
	}
}

func TestCompress_unbounded(t *testing.T) {
	in := []Frame{{0, "a"}, {50, "b"}}
	tl, _, err := Compress(slices.Values(in), 0, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if tl[1].Time != 50 {
		t.Errorf("expected untouched time 50, got %v", tl[1].Time)
	}

	tl, _, _ = Compress(slices.Values(in), math.Inf(1), 0)
	if tl[1].Time != 50 {
		t.Errorf("expected untouched time 50, got %v", tl[1].Time)
	}
}

func TestCompress_gap_bound(t *testing.T) {
	in := []Frame{{0.5, "a"}, {0.7, "b"}, {9, "c"}, {9.1, "d"}, {30, "e"}, {31.5, "f"}}
	const limit = 1.25
	tl, _, _ := Compress(slices.Values(in), limit, 0)

	prev := 0.0
	for i, f := range tl {
		if d := f.Time - prev; d > limit+1e-9 {
			t.Errorf("frame %d: gap %v exceeds limit", i, d)
		}
		if f.Data != in[i].Data {
			t.Errorf("frame %d: payload changed", i)
		}
		prev = f.Time
	}
}

func TestCompress_empty(t *testing.T) {
	_, _, err := Compress(slices.Values([]Frame(nil)), 0, 0)
	if !errors.Is(err, ErrEmptyRecording) {
		t.Errorf("expected ErrEmptyRecording, got %v", err)
	}
}

func TestParseSeekTarget(t *testing.T) {
	cases := []struct {
		in   string
		want SeekTarget
	}{
		{"<<", RelativeSmall{Forward: false}},
		{">>", RelativeSmall{Forward: true}},
		{"<<<", RelativeLarge{Forward: false}},
		{">>>", RelativeLarge{Forward: true}},
		{"50%", Percentage(50)},
		{" 12.5 ", Absolute(12.5)},
	}
	for _, c := range cases {
		got, err := ParseSeekTarget(c.in)
		if err != nil {
			t.Errorf("ParseSeekTarget(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSeekTarget(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "abc", "%", "x%", "NaN", "<>"} {
		if _, err := ParseSeekTarget(bad); err == nil {
			t.Errorf("ParseSeekTarget(%q) should fail", bad)
		}
	}
}

func TestSeekTarget_resolve(t *testing.T) {
	target, _ := ParseSeekTarget("50%")
	if got := clamp(target.resolve(0, 10), 0, 10); got != 5 {
		t.Errorf("50%% of 10: expected 5, got %v", got)
	}
	if got := clamp(Percentage(150).resolve(0, 10), 0, 10); got != 10 {
		t.Errorf("150%% should clamp to 10, got %v", got)
	}
}
