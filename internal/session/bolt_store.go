package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var recordingsBucket = []byte("recordings")

// BoltStore persists recordings in a bbolt database, one JSON value per
// recording keyed by ID.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordingsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create recordings bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// GetRecording implements Store.GetRecording.
func (s *BoltStore) GetRecording(id RecordingID) (*Recording, bool, error) {
	var rec *Recording
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(recordingsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		rec = &Recording{}
		if err := json.Unmarshal(v, rec); err != nil {
			return fmt.Errorf("error deserializing recording %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, rec != nil, nil
}

// PutRecording implements Store.PutRecording.
func (s *BoltStore) PutRecording(r *Recording) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error serializing recording: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordingsBucket).Put([]byte(r.ID), value)
	})
}

// DeleteRecording implements Store.DeleteRecording.
func (s *BoltStore) DeleteRecording(id RecordingID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordingsBucket).Delete([]byte(id))
	})
}

// ListRecordings implements Store.ListRecordings, oldest first.
func (s *BoltStore) ListRecordings() ([]*Recording, error) {
	var out []*Recording
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordingsBucket).ForEach(func(k, v []byte) error {
			rec := &Recording{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("error deserializing recording %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close implements Store.Close.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
