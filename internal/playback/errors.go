package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSource is returned by Init when neither a location nor inline
	// data was supplied.
	ErrMissingSource = errors.New("missing recording source")

	// ErrEmptyRecording is returned by Init when the recording has no frames
	// left after preprocessing.
	ErrEmptyRecording = errors.New("recording has no frames")

	// ErrInvalidRecording is returned by parsers for input they cannot decode.
	ErrInvalidRecording = errors.New("invalid recording")
)

// FetchError reports a failed retrieval from a Location source: either a
// non-success HTTP status or a transport error (Status 0, Err set).
type FetchError struct {
	URL    string
	Status int
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %d %s", e.URL, e.Status, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }
