// Package metrics exposes Prometheus collectors for the frame pipeline and the
// HTTP surface.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Pipeline metrics
	FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moodlens_frames_processed_total",
		Help: "Total number of frames read from the capture source",
	})
	FacesDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moodlens_faces_detected_total",
		Help: "Total number of face regions detected",
	})
	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_classifications_total",
			Help: "Face classifications by top label (none when no result)",
		},
		[]string{"label"},
	)
	PipelineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_pipeline_errors_total",
			Help: "Pipeline errors by stage",
		},
		[]string{"stage"},
	)
	IterationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moodlens_iteration_duration_seconds",
		Help:    "Time spent on one capture-to-encode iteration",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
	})
	HistoryFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moodlens_history_frames",
		Help: "Number of frames currently held in the history",
	})
	PipelineRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moodlens_pipeline_running",
		Help: "1 while the frame pipeline is running",
	})

	// HTTP metrics
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moodlens_stream_clients",
		Help: "Number of connected live video clients",
	})
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moodlens_websocket_clients",
		Help: "Number of connected emotion websocket clients",
	})
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_http_requests_total",
			Help: "HTTP requests by handler, method and status code",
		},
		[]string{"handler", "method", "code"},
	)

	// Submission metrics
	FeedbackSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_feedback_submissions_total",
			Help: "Feedback submissions by result",
		},
		[]string{"result"},
	)
	MisclassificationReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_misclassification_reports_total",
			Help: "Misclassification reports by result",
		},
		[]string{"result"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlens_events_published_total",
			Help: "Events published to the message broker by routing key and status",
		},
		[]string{"routing_key", "status"},
	)
)

// Init registers all collectors with a private registry. It is safe to call
// more than once.
func Init(logger logrus.FieldLogger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			FramesProcessed,
			FacesDetected,
			Classifications,
			PipelineErrors,
			IterationDuration,
			HistoryFrames,
			PipelineRunning,
			StreamClients,
			WebsocketClients,
			HTTPRequests,
			FeedbackSubmissions,
			MisclassificationReports,
			EventsPublished,
		)
		if logger != nil {
			logger.Debug("Prometheus metrics registered")
		}
	})
}

// GetRegistry returns the registry, or nil if Init has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init(nil)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          registry,
	})
}

// InstrumentHandler counts requests to next under the given handler name.
func InstrumentHandler(name string, next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(
		HTTPRequests.MustCurryWith(prometheus.Labels{"handler": name}),
		next,
	)
}
