package session

import "sort"

// Store is the persistence abstraction for the recording library.
// Implementations can be in-memory or bbolt-backed.
// The Repository uses Store for all reads and writes; callers of Repository
// do not need to know which Store is used.
type Store interface {
	GetRecording(id RecordingID) (*Recording, bool, error)
	PutRecording(r *Recording) error
	DeleteRecording(id RecordingID) error
	ListRecordings() ([]*Recording, error)
	Close() error
}

// InMemoryStore is an in-memory implementation of Store. It is not safe for
// concurrent use on its own; Repository serializes access.
type InMemoryStore struct {
	recordings map[RecordingID]*Recording
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		recordings: make(map[RecordingID]*Recording),
	}
}

// GetRecording implements Store.GetRecording.
func (s *InMemoryStore) GetRecording(id RecordingID) (*Recording, bool, error) {
	r, ok := s.recordings[id]
	return r, ok, nil
}

// PutRecording implements Store.PutRecording.
func (s *InMemoryStore) PutRecording(r *Recording) error {
	s.recordings[r.ID] = r
	return nil
}

// DeleteRecording implements Store.DeleteRecording.
func (s *InMemoryStore) DeleteRecording(id RecordingID) error {
	delete(s.recordings, id)
	return nil
}

// ListRecordings implements Store.ListRecordings, oldest first.
func (s *InMemoryStore) ListRecordings() ([]*Recording, error) {
	out := make([]*Recording, 0, len(s.recordings))
	for _, r := range s.recordings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close implements Store.Close.
func (s *InMemoryStore) Close() error { return nil }
