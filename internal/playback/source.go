package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Source describes where a recording comes from. It is either a Location or
// InlineData; no other implementations exist.
type Source interface {
	fetch(ctx context.Context, client *http.Client) (string, error)
}

// FetchOptions customizes the request made for a Location.
type FetchOptions struct {
	Method  string
	Header  http.Header
	Body    string
	Timeout float64 // seconds, 0 means no limit beyond the caller's context
}

// Location is a recording retrieved over HTTP.
type Location struct {
	URL     string
	Options FetchOptions
}

// InlineData is a recording supplied by the caller. Producer may block; it
// receives the context passed to Engine.Init.
type InlineData struct {
	Producer func(ctx context.Context) (string, error)
}

// Data returns an InlineData source for a literal recording.
func Data(raw string) InlineData {
	return InlineData{Producer: func(context.Context) (string, error) { return raw, nil }}
}

func (l Location) fetch(ctx context.Context, client *http.Client) (string, error) {
	if l.URL == "" {
		return "", ErrMissingSource
	}
	if client == nil {
		client = http.DefaultClient
	}

	if l.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, seconds(l.Options.Timeout))
		defer cancel()
	}

	method := l.Options.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if l.Options.Body != "" {
		body = strings.NewReader(l.Options.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.URL, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	for k, vs := range l.Options.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: l.URL, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: l.URL, Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: l.URL, Status: resp.StatusCode, Reason: err.Error(), Err: err}
	}
	return string(b), nil
}

func (d InlineData) fetch(ctx context.Context, _ *http.Client) (string, error) {
	if d.Producer == nil {
		return "", ErrMissingSource
	}
	return d.Producer(ctx)
}
