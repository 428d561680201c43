// Package metrics exposes Prometheus instrumentation for transcription
// sessions. A nil *Recorder is safe to use and records nothing, so library
// callers that do not care about metrics can pass nil throughout.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder aggregates the session-level metrics.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted  *prometheus.CounterVec
	sessionsFailed   *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	resultsEmitted   *prometheus.CounterVec
	errorsEmitted    prometheus.Counter
	framesSubmitted  prometheus.Counter
	sessionDuration  *prometheus.HistogramVec
	modelDownloads   prometheus.Counter
	modelDownloadErr prometheus.Counter
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxkit_sessions_started_total",
			Help: "Total transcription sessions started, by engine variant.",
		}, []string{"engine"}),
		sessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxkit_sessions_failed_total",
			Help: "Total sessions that failed during start, by engine variant.",
		}, []string{"engine"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxkit_sessions_active",
			Help: "Number of currently active transcription sessions.",
		}),
		resultsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxkit_results_emitted_total",
			Help: "Total transcription results emitted, by finality.",
		}, []string{"final"}),
		errorsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxkit_errors_emitted_total",
			Help: "Total error events emitted to listeners.",
		}),
		framesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxkit_frames_submitted_total",
			Help: "Total audio frames submitted to engines.",
		}),
		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxkit_session_duration_seconds",
			Help:    "Duration of completed transcription sessions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"engine"}),
		modelDownloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxkit_model_downloads_total",
			Help: "Total model downloads completed.",
		}),
		modelDownloadErr: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxkit_model_download_errors_total",
			Help: "Total model downloads that failed.",
		}),
	}
}

// Handler returns an HTTP handler serving the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SessionStarted(engine string) {
	if r == nil {
		return
	}
	r.sessionsStarted.WithLabelValues(engine).Inc()
	r.sessionsActive.Inc()
}

func (r *Recorder) SessionFailed(engine string) {
	if r == nil {
		return
	}
	r.sessionsFailed.WithLabelValues(engine).Inc()
}

func (r *Recorder) SessionEnded(engine string, seconds float64) {
	if r == nil {
		return
	}
	r.sessionsActive.Dec()
	r.sessionDuration.WithLabelValues(engine).Observe(seconds)
}

func (r *Recorder) ResultEmitted(final bool) {
	if r == nil {
		return
	}
	label := "false"
	if final {
		label = "true"
	}
	r.resultsEmitted.WithLabelValues(label).Inc()
}

func (r *Recorder) ErrorEmitted() {
	if r == nil {
		return
	}
	r.errorsEmitted.Inc()
}

func (r *Recorder) FrameSubmitted() {
	if r == nil {
		return
	}
	r.framesSubmitted.Inc()
}

func (r *Recorder) ModelDownloaded(ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.modelDownloads.Inc()
	} else {
		r.modelDownloadErr.Inc()
	}
}
