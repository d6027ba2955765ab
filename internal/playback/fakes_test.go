package playback

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeTimer struct {
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// manualScheduler runs callbacks only when the test advances the clock.
// Callbacks run on the test goroutine with no locks held.
type manualScheduler struct {
	clock  *fakeClock
	timers []*fakeTimer
	fired  int
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{due: s.clock.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) nextDue(limit time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) {
			next = t
		}
	}
	return next
}

// advance moves the clock forward by d, firing every timer that comes due on
// the way at its exact due time.
func (s *manualScheduler) advance(d time.Duration) {
	end := s.clock.now.Add(d)
	for {
		t := s.nextDue(end)
		if t == nil {
			break
		}
		if t.due.After(s.clock.now) {
			s.clock.now = t.due
		}
		t.fired = true
		s.fired++
		t.f()
	}
	s.clock.now = end
}

// jump moves the clock without firing anything, simulating a late timer.
func (s *manualScheduler) jump(d time.Duration) {
	s.clock.now = s.clock.now.Add(d)
}

// fireDue fires timers that are due at the current clock reading.
func (s *manualScheduler) fireDue() {
	s.advance(0)
}

// pending returns the most recently scheduled timer that has not run.
func (s *manualScheduler) pending() *fakeTimer {
	for i := len(s.timers) - 1; i >= 0; i-- {
		if t := s.timers[i]; !t.stopped && !t.fired {
			return t
		}
	}
	return nil
}

type feedRecorder struct {
	out []string
}

func (r *feedRecorder) feed(data string) { r.out = append(r.out, data) }

type stateRecorder struct {
	states []string
	reason []any
}

func (r *stateRecorder) notify(state string, details map[string]any) {
	r.states = append(r.states, state)
	r.reason = append(r.reason, details["reason"])
}

type testEngine struct {
	*Engine
	feed  *feedRecorder
	state *stateRecorder
	sched *manualScheduler
	clock *fakeClock
}

func framesParser(cols, rows int, frames []Frame) Parser {
	return ParserFunc(func(string) (*Recording, error) {
		return &Recording{Cols: cols, Rows: rows, Frames: frames}, nil
	})
}

// newTestEngine builds an initialized engine over frames with a manual clock.
func newTestEngine(t *testing.T, frames []Frame, opts Options) *testEngine {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	te := &testEngine{
		feed:  &feedRecorder{},
		state: &stateRecorder{},
		sched: &manualScheduler{clock: clock},
		clock: clock,
	}

	if opts.Parser == nil {
		opts.Parser = framesParser(80, 24, frames)
	}
	opts.Feed = te.feed.feed
	opts.OnState = te.state.notify
	opts.Clock = clock
	opts.Scheduler = te.sched

	te.Engine = NewEngine(Data(""), opts)
	if _, err := te.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return te
}

func abc() []Frame {
	return []Frame{{Time: 0, Data: "a"}, {Time: 1, Data: "b"}, {Time: 2, Data: "c"}}
}
