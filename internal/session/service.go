package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"castplay/internal/platform/metrics"
	"castplay/internal/playback"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRequest is returned for malformed session parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// Config holds the defaults applied to every session. Clock and Scheduler
// are nil in production; tests inject deterministic ones.
type Config struct {
	IdleTimeLimit float64
	MinFrameTime  float64
	FetchTimeout  time.Duration
	HTTPClient    *http.Client
	Clock         playback.Clock
	Scheduler     playback.Scheduler
}

// Session is one viewer-facing playback of a recording.
type Session struct {
	ID          SessionID
	RecordingID RecordingID
	URL         string
	CreatedAt   time.Time

	engine     *playback.Engine
	hub        *Hub
	info       playback.Info
	started    atomic.Bool
	ended      atomic.Bool
	lastActive atomic.Int64
}

func (sess *Session) touch() {
	sess.lastActive.Store(time.Now().UnixNano())
}

func (sess *Session) state() State {
	switch {
	case sess.engine.Playing():
		return StatePlaying
	case sess.ended.Load():
		return StateStopped
	case sess.started.Load():
		return StatePaused
	default:
		return StateIdle
	}
}

func (sess *Session) status() Status {
	return Status{
		ID:          sess.ID,
		RecordingID: sess.RecordingID,
		URL:         sess.URL,
		State:       sess.state(),
		CurrentTime: sess.engine.CurrentTime(),
		Duration:    sess.info.Duration,
		Cols:        sess.info.Cols,
		Rows:        sess.info.Rows,
		PlayCount:   sess.engine.PlayCount(),
		Viewers:     sess.hub.Count(),
		CreatedAt:   sess.CreatedAt,
	}
}

func (sess *Session) broadcastState(state State, reason string) {
	b, err := json.Marshal(Event{Type: "state", State: state, Reason: reason})
	if err != nil {
		return
	}
	sess.hub.BroadcastEvent(b)
}

// Service manages playback sessions and the recording library.
type Service struct {
	repo    Repository
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

// NewService returns a Service backed by repo. Metrics may be nil.
func NewService(repo Repository, cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		sessions: make(map[SessionID]*Session),
	}
}

// SaveRecording adds a recording to the library.
func (s *Service) SaveRecording(title, data string) (*Recording, error) {
	rec, err := s.repo.SaveRecording(title, data)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncRecordingsSaved()
	}
	return rec, nil
}

// GetRecording returns a stored recording.
func (s *Service) GetRecording(id RecordingID) (*Recording, error) {
	return s.repo.GetRecording(id)
}

// ListRecordings returns the library without raw data.
func (s *Service) ListRecordings() ([]Recording, error) {
	return s.repo.ListRecordings()
}

// DeleteRecording removes a recording from the library. Sessions already
// created from it keep playing.
func (s *Service) DeleteRecording(id RecordingID) error {
	return s.repo.DeleteRecording(id)
}

// RecordingCount returns the library size. Used for metrics.
func (s *Service) RecordingCount() int {
	return s.repo.RecordingCount()
}

// CreateSession resolves the source, initializes a playback engine and
// registers the session.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (Status, error) {
	src, err := s.source(req)
	if err != nil {
		return Status{}, err
	}
	if req.Loop < playback.LoopForever || req.IdleTimeLimit < 0 || req.StartAt < 0 {
		return Status{}, fmt.Errorf("%w: loop, idle_time_limit and start_at must not be negative", ErrInvalidRequest)
	}

	idleTimeLimit := req.IdleTimeLimit
	if idleTimeLimit == 0 {
		idleTimeLimit = s.cfg.IdleTimeLimit
	}

	sess := &Session{
		ID:          SessionID(uuid.New().String()),
		RecordingID: req.RecordingID,
		URL:         req.URL,
		CreatedAt:   time.Now().UTC(),
		hub:         NewHub(s.log),
	}
	sess.touch()

	log := s.log.With(slog.String("session_id", string(sess.ID)))
	sess.engine = playback.NewEngine(src, playback.Options{
		IdleTimeLimit: idleTimeLimit,
		StartAt:       req.StartAt,
		Loop:          req.Loop,
		MinFrameTime:  s.cfg.MinFrameTime,
		Feed: func(data string) {
			sess.hub.BroadcastOutput(data)
			if s.metrics != nil {
				s.metrics.IncFramesFed()
			}
		},
		OnState: func(state string, details map[string]any) {
			reason, _ := details["reason"].(string)
			sess.ended.Store(true)
			sess.broadcastState(State(state), reason)
			if s.metrics != nil {
				s.metrics.IncPlaybacksEnded()
			}
			log.Info("playback ended", slog.String("reason", reason))
		},
		Clock:      s.cfg.Clock,
		Scheduler:  s.cfg.Scheduler,
		HTTPClient: s.cfg.HTTPClient,
		Logger:     log,
	})

	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	info, err := sess.engine.Init(ctx)
	if err != nil {
		return Status{}, err
	}
	sess.info = info

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncSessionsCreated()
	}
	log.Info("session created",
		slog.String("recording_id", string(req.RecordingID)),
		slog.String("url", req.URL),
		slog.Float64("duration", info.Duration))

	if req.Autoplay {
		return s.Play(sess.ID)
	}
	return sess.status(), nil
}

func (s *Service) source(req CreateRequest) (playback.Source, error) {
	switch {
	case req.RecordingID != "" && req.URL != "":
		return nil, fmt.Errorf("%w: set either recording_id or url, not both", playback.ErrMissingSource)
	case req.RecordingID != "":
		id := req.RecordingID
		return playback.InlineData{Producer: func(context.Context) (string, error) {
			rec, err := s.repo.GetRecording(id)
			if err != nil {
				return "", err
			}
			return rec.Data, nil
		}}, nil
	case req.URL != "":
		return playback.Location{URL: req.URL}, nil
	default:
		return nil, playback.ErrMissingSource
	}
}

func (s *Service) get(id SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

// Status returns the current status of a session.
func (s *Service) Status(id SessionID) (Status, error) {
	sess, err := s.get(id)
	if err != nil {
		return Status{}, err
	}
	return sess.status(), nil
}

// ListSessions returns the status of every session, oldest first.
func (s *Service) ListSessions() []Status {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	out := make([]Status, 0, len(all))
	for _, sess := range all {
		out = append(out, sess.status())
	}
	return out
}

// Play starts or resumes playback.
func (s *Service) Play(id SessionID) (Status, error) {
	sess, err := s.get(id)
	if err != nil {
		return Status{}, err
	}
	sess.started.Store(true)
	// Cleared first: Play may run a short recording to its end synchronously.
	sess.ended.Store(false)
	sess.engine.Play()
	sess.broadcastState(sess.state(), "")
	return sess.status(), nil
}

// Pause pauses playback.
func (s *Service) Pause(id SessionID) (Status, error) {
	sess, err := s.get(id)
	if err != nil {
		return Status{}, err
	}
	if sess.engine.Playing() {
		sess.engine.Pause()
		sess.broadcastState(StatePaused, "")
	}
	return sess.status(), nil
}

// Step feeds the next frame.
func (s *Service) Step(id SessionID) (Status, error) {
	sess, err := s.get(id)
	if err != nil {
		return Status{}, err
	}
	sess.started.Store(true)
	sess.ended.Store(false)
	sess.engine.Step()
	sess.broadcastState(sess.state(), "")
	return sess.status(), nil
}

// Seek moves a session to target.
func (s *Service) Seek(id SessionID, target playback.SeekTarget) (Status, error) {
	sess, err := s.get(id)
	if err != nil {
		return Status{}, err
	}
	sess.started.Store(true)
	sess.ended.Store(false)
	sess.engine.Seek(target)
	sess.broadcastState(sess.state(), "")
	if s.metrics != nil {
		s.metrics.IncSeeks()
	}
	return sess.status(), nil
}

// Execute applies a viewer command.
func (s *Service) Execute(id SessionID, cmd Command) (Status, error) {
	switch cmd.Action {
	case "play":
		return s.Play(id)
	case "pause", "stop":
		return s.Pause(id)
	case "step":
		return s.Step(id)
	case "seek":
		target, err := ParseSeekBody(cmd.To)
		if err != nil {
			return Status{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return s.Seek(id, target)
	default:
		return Status{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, cmd.Action)
	}
}

// ParseSeekBody accepts either a JSON number of seconds or a string token
// understood by playback.ParseSeekTarget.
func ParseSeekBody(raw json.RawMessage) (playback.SeekTarget, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing seek target")
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return playback.Absolute(secs), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("seek target must be a number or a string: %s", raw)
	}
	return playback.ParseSeekTarget(s)
}

// Poster renders the screen as it looks at the given time without affecting
// playback.
func (s *Service) Poster(id SessionID, at float64) (string, error) {
	sess, err := s.get(id)
	if err != nil {
		return "", err
	}
	return RenderScreen(sess.engine.Poster(at), sess.info.Cols, sess.info.Rows), nil
}

// Subscribe attaches a viewer to the session's feed.
func (s *Service) Subscribe(id SessionID) (*Subscriber, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.hub.Subscribe(), nil
}

// Unsubscribe detaches a viewer. Unknown sessions are ignored.
func (s *Service) Unsubscribe(id SessionID, sub *Subscriber) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.hub.Unsubscribe(sub)
	}
}

// CloseSession stops playback and disconnects viewers. Closing an unknown
// session returns ErrSessionNotFound.
func (s *Service) CloseSession(id SessionID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.engine.Stop()
	sess.hub.Close()
	s.log.Info("session closed", slog.String("session_id", string(id)))
	return nil
}

// CloseAll closes every session. Used on shutdown.
func (s *Service) CloseAll() {
	s.mu.RLock()
	ids := make([]SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.CloseSession(id)
	}
}

// ReapIdle closes sessions that are not playing, have no viewers and have
// not been touched for maxIdle. It returns the number of closed sessions.
func (s *Service) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	s.mu.RLock()
	var idle []SessionID
	for id, sess := range s.sessions {
		if sess.lastActive.Load() < cutoff && sess.hub.Count() == 0 && !sess.engine.Playing() {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range idle {
		_ = s.CloseSession(id)
	}
	return len(idle)
}

// ActiveSessionCount returns the number of open sessions. Used for metrics.
func (s *Service) ActiveSessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
