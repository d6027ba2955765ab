package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback service.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	sessionsCreated prometheus.Counter
	activeSessions  prometheus.Gauge
	framesFed       prometheus.Counter
	seeksTotal      prometheus.Counter
	playbacksEnded  prometheus.Counter
	recordingsSaved prometheus.Counter
	storedRecords   prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_sessions_created_total",
			Help: "Total number of playback sessions successfully initialized",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "castplay_active_sessions",
			Help: "Number of open playback sessions",
		}),
		framesFed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_frames_fed_total",
			Help: "Total number of payloads fed to session terminals, resets included",
		}),
		seeksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_seeks_total",
			Help: "Total number of seek operations",
		}),
		playbacksEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_playbacks_ended_total",
			Help: "Total number of playbacks that reached the end of the recording",
		}),
		recordingsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castplay_recordings_saved_total",
			Help: "Total number of recordings added to the library",
		}),
		storedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "castplay_recordings",
			Help: "Number of recordings in the library",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsCreated,
		m.activeSessions,
		m.framesFed,
		m.seeksTotal,
		m.playbacksEnded,
		m.recordingsSaved,
		m.storedRecords,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsCreated increments the sessions created counter.
func (m *Metrics) IncSessionsCreated() {
	m.sessionsCreated.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncFramesFed increments the fed payloads counter.
func (m *Metrics) IncFramesFed() {
	m.framesFed.Inc()
}

// IncSeeks increments the seek counter.
func (m *Metrics) IncSeeks() {
	m.seeksTotal.Inc()
}

// IncPlaybacksEnded increments the ended playbacks counter.
func (m *Metrics) IncPlaybacksEnded() {
	m.playbacksEnded.Inc()
}

// IncRecordingsSaved increments the saved recordings counter.
func (m *Metrics) IncRecordingsSaved() {
	m.recordingsSaved.Inc()
}

// SetRecordings sets the library size gauge.
func (m *Metrics) SetRecordings(n int) {
	m.storedRecords.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
