package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"castplay/internal/playback"

	"github.com/google/uuid"
)

// Repository defines the concurrency-safe contract for the recording library.
type Repository interface {
	// SaveRecording validates data as an asciicast and stores it under a new ID.
	SaveRecording(title, data string) (*Recording, error)

	// GetRecording returns the stored recording, including its raw data.
	GetRecording(id RecordingID) (*Recording, error)

	// ListRecordings returns all recordings without raw data, oldest first.
	ListRecordings() ([]Recording, error)

	// DeleteRecording removes a recording. Deleting a missing recording is a
	// no-op.
	DeleteRecording(id RecordingID) error

	// RecordingCount returns the number of stored recordings. Used for metrics.
	RecordingCount() int
}

var (
	// ErrRecordingNotFound is returned when a recording ID is unknown.
	ErrRecordingNotFound = errors.New("recording not found")
)

// LibraryRepository is a concurrency-safe Repository backed by a Store.
type LibraryRepository struct {
	mu     sync.RWMutex
	store  Store
	parser playback.Parser
}

// NewInMemoryRepository constructs a repository with a default in-memory store.
func NewInMemoryRepository() *LibraryRepository {
	return NewRepositoryWithStore(NewInMemoryStore())
}

// NewRepositoryWithStore constructs a repository that uses the given Store.
func NewRepositoryWithStore(store Store) *LibraryRepository {
	return &LibraryRepository{store: store, parser: playback.AsciicastParser{}}
}

// SaveRecording implements Repository.SaveRecording.
func (r *LibraryRepository) SaveRecording(title, data string) (*Recording, error) {
	parsed, err := r.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(parsed.Frames) == 0 {
		return nil, playback.ErrEmptyRecording
	}

	rec := &Recording{
		ID:        RecordingID(uuid.New().String()),
		Title:     title,
		Data:      data,
		Cols:      parsed.Cols,
		Rows:      parsed.Rows,
		Frames:    len(parsed.Frames),
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.PutRecording(rec); err != nil {
		return nil, fmt.Errorf("store recording: %w", err)
	}
	return rec, nil
}

// GetRecording implements Repository.GetRecording.
func (r *LibraryRepository) GetRecording(id RecordingID) (*Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok, err := r.store.GetRecording(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return rec, nil
}

// ListRecordings implements Repository.ListRecordings.
func (r *LibraryRepository) ListRecordings() ([]Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs, err := r.store.ListRecordings()
	if err != nil {
		return nil, err
	}
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary())
	}
	return out, nil
}

// DeleteRecording implements Repository.DeleteRecording.
func (r *LibraryRepository) DeleteRecording(id RecordingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.DeleteRecording(id)
}

// RecordingCount implements Repository.RecordingCount.
func (r *LibraryRepository) RecordingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs, err := r.store.ListRecordings()
	if err != nil {
		return 0
	}
	return len(recs)
}
