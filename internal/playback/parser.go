package playback

import (
	"bufio"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parser turns raw recording text into a Recording.
type Parser interface {
	Parse(raw string) (*Recording, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(raw string) (*Recording, error)

// Parse implements Parser.
func (f ParserFunc) Parse(raw string) (*Recording, error) { return f(raw) }

// AsciicastParser decodes asciicast v1, v2 and v3 recordings. Only output
// ("o") events become frames.
type AsciicastParser struct{}

type castHeader struct {
	Version       int     `json:"version"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	IdleTimeLimit float64 `json:"idle_time_limit"`
	Term          struct {
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	} `json:"term"`
}

type castV1 struct {
	Version int     `json:"version"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Stdout  [][]any `json:"stdout"`
}

// Parse implements Parser.
func (AsciicastParser) Parse(raw string) (*Recording, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidRecording)
	}

	firstLine, rest, _ := strings.Cut(raw, "\n")

	var hdr castHeader
	if err := json.Unmarshal([]byte(firstLine), &hdr); err != nil {
		// v1 files are a single, possibly indented, JSON document.
		return parseV1(raw)
	}

	switch hdr.Version {
	case 1:
		return parseV1(raw)
	case 2:
		return parseEvents(rest, hdr.Width, hdr.Height, hdr.IdleTimeLimit, false)
	case 3:
		return parseEvents(rest, hdr.Term.Cols, hdr.Term.Rows, hdr.IdleTimeLimit, true)
	default:
		return nil, fmt.Errorf("%w: unsupported asciicast version %d", ErrInvalidRecording, hdr.Version)
	}
}

func parseV1(raw string) (*Recording, error) {
	var doc castV1
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported asciicast version %d", ErrInvalidRecording, doc.Version)
	}

	rec := &Recording{Cols: doc.Width, Rows: doc.Height}
	var t float64
	for i, ev := range doc.Stdout {
		if len(ev) < 2 {
			return nil, fmt.Errorf("%w: stdout entry %d is too short", ErrInvalidRecording, i)
		}
		delay, ok1 := ev[0].(float64)
		data, ok2 := ev[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: stdout entry %d is malformed", ErrInvalidRecording, i)
		}
		t += delay
		rec.Frames = append(rec.Frames, Frame{Time: t, Data: data})
	}
	return rec, nil
}

// parseEvents reads newline-delimited [time, code, data] events. In v3 the
// time field is the interval since the previous event.
func parseEvents(body string, cols, rows int, idleTimeLimit float64, relative bool) (*Recording, error) {
	rec := &Recording{Cols: cols, Rows: rows, IdleTimeLimit: idleTimeLimit}

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var t float64
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var ev []any
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRecording, line, err)
		}
		if len(ev) < 3 {
			return nil, fmt.Errorf("%w: line %d: event is too short", ErrInvalidRecording, line)
		}
		at, ok1 := ev[0].(float64)
		code, ok2 := ev[1].(string)
		data, ok3 := ev[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("%w: line %d: event is malformed", ErrInvalidRecording, line)
		}

		if relative {
			t += at
		} else {
			t = at
		}
		if code == "o" {
			rec.Frames = append(rec.Frames, Frame{Time: t, Data: data})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	return rec, nil
}
