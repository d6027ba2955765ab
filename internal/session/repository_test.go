package session

import (
	"errors"
	"testing"

	"castplay/internal/playback"
)

func TestRepository_SaveRecording(t *testing.T) {
	repo := NewInMemoryRepository()

	rec, err := repo.SaveRecording("demo", demoCast)
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if rec.Cols != 20 || rec.Rows != 3 || rec.Frames != 3 {
		t.Errorf("unexpected metadata %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := repo.GetRecording(rec.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.Data != demoCast {
		t.Errorf("Data = %q", got.Data)
	}
}

func TestRepository_SaveRecording_rejects(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.SaveRecording("", "{{{"); !errors.Is(err, playback.ErrInvalidRecording) {
		t.Errorf("garbage: err = %v, want ErrInvalidRecording", err)
	}
	if _, err := repo.SaveRecording("", `{"version": 2, "width": 80, "height": 24}`); !errors.Is(err, playback.ErrEmptyRecording) {
		t.Errorf("header only: err = %v, want ErrEmptyRecording", err)
	}
	if n := repo.RecordingCount(); n != 0 {
		t.Errorf("rejected recordings were stored: count = %d", n)
	}
}

func TestRepository_GetRecording_not_found(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.GetRecording("missing"); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("err = %v, want ErrRecordingNotFound", err)
	}
}

func TestRepository_ListRecordings_omits_data(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.SaveRecording("one", demoCast)
	repo.SaveRecording("two", demoCast)

	recs, err := repo.ListRecordings()
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Data != "" {
			t.Errorf("recording %s includes raw data", r.ID)
		}
	}
}

func TestRepository_DeleteRecording(t *testing.T) {
	repo := NewInMemoryRepository()
	rec, _ := repo.SaveRecording("demo", demoCast)

	if err := repo.DeleteRecording(rec.ID); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if repo.RecordingCount() != 0 {
		t.Error("recording should be deleted")
	}
	if err := repo.DeleteRecording(rec.ID); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}
