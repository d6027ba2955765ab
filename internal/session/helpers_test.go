package session

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"castplay/internal/playback"
)

// demoCast is 2 seconds long and prints "hello world" followed by a prompt.
const demoCast = `{"version": 2, "width": 20, "height": 3}
[0.0, "o", "hello"]
[1.0, "o", " world"]
[2.0, "o", "\r\n$ "]
`

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type stepTimer struct {
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *stepTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// stepScheduler only fires callbacks when a test calls advance.
type stepScheduler struct {
	mu     sync.Mutex
	clock  *stepClock
	timers []*stepTimer
}

func (s *stepScheduler) AfterFunc(d time.Duration, f func()) playback.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &stepTimer{due: s.clock.Now().Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *stepScheduler) nextDue(limit time.Time) *stepTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *stepTimer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) {
			next = t
		}
	}
	if next != nil {
		next.fired = true
	}
	return next
}

// advance moves the clock forward by d, firing due timers in order.
func (s *stepScheduler) advance(d time.Duration) {
	end := s.clock.Now().Add(d)
	for {
		t := s.nextDue(end)
		if t == nil {
			break
		}
		s.clock.mu.Lock()
		if t.due.After(s.clock.now) {
			s.clock.now = t.due
		}
		s.clock.mu.Unlock()
		t.f()
	}
	s.clock.mu.Lock()
	s.clock.now = end
	s.clock.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type testService struct {
	*Service
	repo  *LibraryRepository
	sched *stepScheduler
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sched := &stepScheduler{clock: clock}
	repo := NewInMemoryRepository()
	svc := NewService(repo, Config{Clock: clock, Scheduler: sched}, testLogger(), nil)
	return &testService{Service: svc, repo: repo, sched: sched}
}

func (ts *testService) saveDemo(t *testing.T) RecordingID {
	t.Helper()
	rec, err := ts.SaveRecording("demo", demoCast)
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	return rec.ID
}

// drain returns everything currently buffered on sub.
func drain(sub *Subscriber) []Message {
	var out []Message
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}
