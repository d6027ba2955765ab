package playback

import "time"

// Clock returns the current wall-clock time. Engines only ever subtract two
// readings, so the monotonic component of time.Now is what matters.
type Clock interface {
	Now() time.Time
}

// Timer is a pending delayed callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler schedules callbacks with time.AfterFunc.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
