package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"castplay/internal/playback"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	maxRecordingSize = 32 << 20
	writeWait        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler exposes the recording library and session transport controls over
// HTTP using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts all endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/recordings", func(r chi.Router) {
		r.Post("/", h.SaveRecording)
		r.Get("/", h.ListRecordings)
		r.Get("/{recording_id}", h.GetRecording)
		r.Delete("/{recording_id}", h.DeleteRecording)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Post("/play", h.Play)
			r.Post("/pause", h.Pause)
			r.Post("/step", h.Step)
			r.Post("/seek", h.Seek)
			r.Get("/poster", h.Poster)
			r.Get("/feed", h.Feed)
		})
	})
}

// SaveRecording handles POST /recordings. The body is the raw asciicast.
func (h *Handler) SaveRecording(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRecordingSize+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > maxRecordingSize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	rec, err := h.svc.SaveRecording(r.URL.Query().Get("title"), string(body))
	if err != nil {
		h.writeError(w, "save recording failed", err)
		return
	}

	h.log.Info("recording saved",
		slog.String("recording_id", string(rec.ID)),
		slog.Int("frames", rec.Frames))
	writeJSON(w, http.StatusCreated, rec.Summary())
}

// ListRecordings handles GET /recordings.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ListRecordings()
	if err != nil {
		h.writeError(w, "list recordings failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

// GetRecording handles GET /recordings/{recording_id} and returns the raw
// asciicast.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecording(RecordingID(chi.URLParam(r, "recording_id")))
	if err != nil {
		h.writeError(w, "get recording failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-asciicast")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rec.Data)
}

// DeleteRecording handles DELETE /recordings/{recording_id}.
func (h *Handler) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	id := RecordingID(chi.URLParam(r, "recording_id"))
	if err := h.svc.DeleteRecording(id); err != nil {
		h.writeError(w, "delete recording failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSession handles POST /sessions.
// Body: { "recording_id": "...", "idle_time_limit": 2, "start_at": 0, "loop": 0 }.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	st, err := h.svc.CreateSession(r.Context(), req)
	if err != nil {
		h.writeError(w, "create session failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.svc.ListSessions()})
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(sessionID(r))
	h.writeStatus(w, st, err)
}

// CloseSession handles DELETE /sessions/{session_id}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(sessionID(r)); err != nil {
		h.writeError(w, "close session failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Play handles POST /sessions/{session_id}/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Play(sessionID(r))
	h.writeStatus(w, st, err)
}

// Pause handles POST /sessions/{session_id}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Pause(sessionID(r))
	h.writeStatus(w, st, err)
}

// Step handles POST /sessions/{session_id}/step.
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Step(sessionID(r))
	h.writeStatus(w, st, err)
}

// Seek handles POST /sessions/{session_id}/seek.
// Body: { "to": "50%" }; "to" also accepts "<<", ">>", "<<<", ">>>" and seconds.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To json.RawMessage `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.To) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	target, err := ParseSeekBody(body.To)
	if err != nil {
		h.log.Debug("invalid seek target", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	st, err := h.svc.Seek(sessionID(r), target)
	h.writeStatus(w, st, err)
}

// Poster handles GET /sessions/{session_id}/poster?at=12.5. Without "at" the
// session's current time is used.
func (h *Handler) Poster(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	var at float64
	if q := r.URL.Query().Get("at"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		at = v
	} else {
		st, err := h.svc.Status(id)
		if err != nil {
			h.writeError(w, "poster failed", err)
			return
		}
		at = st.CurrentTime
	}

	screen, err := h.svc.Poster(id, at)
	if err != nil {
		h.writeError(w, "poster failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, screen)
}

// Feed handles GET /sessions/{session_id}/feed. Terminal output is sent as
// binary messages and state events as JSON text messages. Viewers may send
// Command messages to control playback.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	sub, err := h.svc.Subscribe(id)
	if err != nil {
		h.writeError(w, "subscribe failed", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.svc.Unsubscribe(id, sub)
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	log := h.log.With(slog.String("session_id", string(id)))
	log.Info("viewer connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readCommands(conn, id, log)
	}()

	defer func() {
		h.svc.Unsubscribe(id, sub)
		log.Info("viewer disconnected")
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(msg.Kind, msg.Data); err != nil {
				log.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) readCommands(conn *websocket.Conn, id SessionID, log *slog.Logger) {
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				log.Debug("ignoring malformed command", slog.String("error", err.Error()))
				continue
			}
			return
		}
		if _, err := h.svc.Execute(id, cmd); err != nil {
			log.Debug("command failed",
				slog.String("action", cmd.Action),
				slog.String("error", err.Error()))
		}
	}
}

func sessionID(r *http.Request) SessionID {
	return SessionID(chi.URLParam(r, "session_id"))
}

func (h *Handler) writeStatus(w http.ResponseWriter, st Status, err error) {
	if err != nil {
		h.writeError(w, "session operation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// writeError maps service and playback errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	var fetchErr *playback.FetchError
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrRecordingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, playback.ErrMissingSource):
		status = http.StatusBadRequest
	case errors.Is(err, playback.ErrInvalidRecording), errors.Is(err, playback.ErrEmptyRecording):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Error(msg, slog.String("error", err.Error()))
	} else {
		h.log.Debug(msg, slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
