package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"
)

// LoopForever makes playback restart from the beginning indefinitely.
const LoopForever = -1

// State names passed to the StateNotifier.
const (
	StateStopped = "stopped"
	ReasonEnded  = "ended"
)

// FeedFunc forwards a payload to the terminal renderer. It must accept
// ResetSequence as a "clear and reset" instruction.
type FeedFunc func(data string)

// StateNotifier is told about state changes the caller did not initiate,
// currently only ("stopped", {"reason": "ended"}). It is called with the
// engine locked and must not call back into the engine.
type StateNotifier func(state string, details map[string]any)

// Options configures an Engine.
type Options struct {
	// IdleTimeLimit caps the gap between frames, in seconds. 0 uses the
	// limit stored in the recording, and no limit if there is none.
	IdleTimeLimit float64
	// StartAt is where the first Play begins, in seconds of the original
	// (uncompressed) recording.
	StartAt float64
	// Loop is 0 for no looping, LoopForever, or the total number of times the
	// timeline is played before stopping.
	Loop int
	// MinFrameTime is the batching interval; 0 means DefaultMinFrameTime.
	MinFrameTime float64

	Parser     Parser
	Feed       FeedFunc
	OnState    StateNotifier
	Clock      Clock
	Scheduler  Scheduler
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// cursor is the mutable playback position. Playing and paused are mutually
// exclusive: timer is non-nil exactly while playing, paused is only
// meaningful while timer is nil.
type cursor struct {
	next      int
	elapsed   float64   // time of the last fed frame
	anchor    time.Time // wall-clock reading at virtual time 0
	paused    float64
	timer     Timer
	gen       uint64
	playCount int
}

// Engine plays a Timeline against a wall clock. All methods are safe for
// concurrent use; timer callbacks are serialized with transport operations
// through the same mutex.
type Engine struct {
	src  Source
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	initialized bool
	meta        RecordingMeta
	timeline    Timeline
	startAt     float64
	startValid  bool
	cur         cursor
}

// NewEngine returns an Engine for src. Unset collaborators default to the
// asciicast parser, the system clock, time.AfterFunc and a no-op feed.
func NewEngine(src Source, opts Options) *Engine {
	if opts.Parser == nil {
		opts.Parser = AsciicastParser{}
	}
	if opts.Feed == nil {
		opts.Feed = func(string) {}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.MinFrameTime <= 0 {
		opts.MinFrameTime = DefaultMinFrameTime
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{src: src, opts: opts, log: log}
}

// Init fetches and parses the recording and builds the timeline. After the
// first successful call it returns the cached result.
func (e *Engine) Init(ctx context.Context) (Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return e.infoLocked(), nil
	}
	if e.src == nil {
		return Info{}, ErrMissingSource
	}

	raw, err := e.src.fetch(ctx, e.opts.HTTPClient)
	if err != nil {
		return Info{}, err
	}

	rec, err := e.opts.Parser.Parse(raw)
	if err != nil {
		return Info{}, fmt.Errorf("parse recording: %w", err)
	}

	idleTimeLimit := e.opts.IdleTimeLimit
	if idleTimeLimit <= 0 {
		idleTimeLimit = rec.IdleTimeLimit
	}
	if idleTimeLimit <= 0 {
		idleTimeLimit = unbounded()
	}

	batched := Batch(slices.Values(rec.Frames), e.opts.MinFrameTime, e.log)
	timeline, startAt, err := Compress(batched, idleTimeLimit, e.opts.StartAt)
	if err != nil {
		return Info{}, err
	}

	e.timeline = timeline
	e.meta = RecordingMeta{
		Cols:          rec.Cols,
		Rows:          rec.Rows,
		Duration:      timeline.Duration(),
		IdleTimeLimit: idleTimeLimit,
	}
	e.startAt, e.startValid = startAt, true
	e.initialized = true

	e.log.Debug("recording initialized",
		slog.Int("cols", rec.Cols),
		slog.Int("rows", rec.Rows),
		slog.Int("frames", len(timeline)),
		slog.Float64("duration", e.meta.Duration))

	return e.infoLocked(), nil
}

// Meta returns the recording metadata. It is the zero value before Init.
func (e *Engine) Meta() RecordingMeta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta
}

// Play starts or resumes playback. Playing an engine that reached the end
// starts over from the beginning.
func (e *Engine) Play() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return false
	}
	if e.cur.timer != nil {
		return true
	}

	if e.cur.next >= len(e.timeline) {
		e.startAt, e.startValid = 0, true
	}
	if e.startValid {
		e.seekLocked(Absolute(e.startAt))
	}
	e.resumeLocked()
	return true
}

// Pause stops the clock at the current virtual time.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return false
	}
	e.pauseLocked()
	return true
}

// Stop is an alias of Pause.
func (e *Engine) Stop() bool { return e.Pause() }

// Playing reports whether a frame is scheduled.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur.timer != nil
}

// Seek moves the virtual time to target, clamped to the recording. Frames
// between the old and new position are fed immediately.
func (e *Engine) Seek(target SeekTarget) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized || target == nil {
		return false
	}
	e.seekLocked(target)
	return true
}

// Step feeds exactly one frame. It returns false when no frame remains.
func (e *Engine) Step() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return false
	}

	wasPlaying := e.cur.timer != nil
	e.pauseLocked()
	e.startValid = false

	if e.cur.next >= len(e.timeline) {
		return false
	}

	f := e.timeline[e.cur.next]
	e.opts.Feed(f.Data)
	e.cur.elapsed = f.Time
	e.cur.paused = f.Time
	e.cur.next++

	if wasPlaying {
		e.resumeLocked()
	}
	return true
}

// Poster returns the payloads of all frames before t. It does not touch the
// playback position.
func (e *Engine) Poster(t float64) []string {
	e.mu.Lock()
	timeline := e.timeline
	e.mu.Unlock()

	var out []string
	for _, f := range timeline {
		if f.Time >= t {
			break
		}
		out = append(out, f.Data)
	}
	return out
}

// CurrentTime returns the virtual time in seconds.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur.timer != nil {
		return e.sinceAnchorLocked()
	}
	return e.cur.paused
}

// PlayCount returns how many times the timeline has been played to the end.
func (e *Engine) PlayCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur.playCount
}

func (e *Engine) infoLocked() Info {
	return Info{Cols: e.meta.Cols, Rows: e.meta.Rows, Duration: e.meta.Duration}
}

func (e *Engine) sinceAnchorLocked() float64 {
	return e.opts.Clock.Now().Sub(e.cur.anchor).Seconds()
}

func (e *Engine) cancelTimerLocked() {
	if e.cur.timer != nil {
		e.cur.timer.Stop()
		e.cur.timer = nil
	}
	// Invalidates callbacks that already fired but have not taken the lock.
	e.cur.gen++
}

func (e *Engine) pauseLocked() {
	if e.cur.timer == nil {
		return
	}
	e.cancelTimerLocked()
	e.cur.paused = e.sinceAnchorLocked()
}

func (e *Engine) resumeLocked() {
	e.cur.anchor = e.opts.Clock.Now().Add(-seconds(e.cur.paused))
	e.cur.paused = 0
	e.scheduleNextLocked()
}

func (e *Engine) seekLocked(target SeekTarget) {
	wasPlaying := e.cur.timer != nil
	e.pauseLocked()

	duration := e.meta.Duration
	t := clamp(target.resolve(e.cur.paused, duration), 0, duration)

	if t < e.cur.elapsed {
		e.opts.Feed(ResetSequence)
		e.cur.next = 0
		e.cur.elapsed = 0
	}

	for e.cur.next < len(e.timeline) && e.timeline[e.cur.next].Time < t {
		f := e.timeline[e.cur.next]
		e.opts.Feed(f.Data)
		e.cur.elapsed = f.Time
		e.cur.next++
	}

	e.cur.paused = t
	e.startValid = false

	if wasPlaying {
		e.resumeLocked()
	}
}

func (e *Engine) scheduleNextLocked() {
	if e.cur.next >= len(e.timeline) {
		e.endLocked()
		return
	}

	elapsedWall := e.sinceAnchorLocked()
	timeout := max(0, e.timeline[e.cur.next].Time-elapsedWall)

	e.cur.gen++
	gen := e.cur.gen
	e.cur.timer = e.opts.Scheduler.AfterFunc(seconds(timeout), func() { e.fire(gen) })
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur.timer == nil || gen != e.cur.gen {
		return
	}
	e.runFramesLocked()
}

// runFramesLocked feeds the due frame and every following frame whose time
// has already passed on the wall clock, then schedules the next one.
func (e *Engine) runFramesLocked() {
	for {
		f := e.timeline[e.cur.next]
		e.opts.Feed(f.Data)
		e.cur.elapsed = f.Time
		e.cur.next++

		if e.cur.next >= len(e.timeline) {
			break
		}
		if e.sinceAnchorLocked() < e.timeline[e.cur.next].Time {
			break
		}
	}
	e.scheduleNextLocked()
}

func (e *Engine) endLocked() {
	e.cancelTimerLocked()
	e.cur.playCount++

	if e.opts.Loop == LoopForever || (e.opts.Loop > 0 && e.cur.playCount < e.opts.Loop) {
		e.log.Debug("restarting playback", slog.Int("play_count", e.cur.playCount))
		e.cur.next = 0
		e.cur.elapsed = 0
		e.cur.anchor = e.opts.Clock.Now()
		e.opts.Feed(ResetSequence)
		e.scheduleNextLocked()
		return
	}

	e.cur.paused = e.meta.Duration
	e.startValid = false
	e.log.Debug("playback ended", slog.Int("play_count", e.cur.playCount))

	if e.opts.OnState != nil {
		e.opts.OnState(StateStopped, map[string]any{"reason": ReasonEnded})
	}
}
