package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/snarg/subforge/internal/caption"
)

const namespace = "subforge"

// HTTP metrics, recorded by InstrumentHandler.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Caption compiler counters.
var (
	CaptionDocumentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "caption_documents_total",
		Help:      "Caption documents compiled.",
	})

	CaptionSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "caption_skipped_total",
		Help:      "Scenes whose text held nothing to caption.",
	})

	CaptionCuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "caption_cues_total",
		Help:      "Caption cues emitted per layer.",
	}, []string{"layer"})

	CaptionTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "caption_tokens",
		Help:      "Tokens per compiled caption document.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 9), // 1 → 256
	})
)

// Pipeline counters (incremented by the task runner).
var (
	ScenesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scenes_total",
		Help:      "Scenes rendered by outcome.",
	}, []string{"outcome"})

	SceneDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scene_render_seconds",
		Help:      "Wall time to produce one scene clip.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1s → 128s
	})

	TasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "Generation tasks finished by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CaptionDocumentsTotal,
		CaptionSkippedTotal,
		CaptionCuesTotal,
		CaptionTokens,
		ScenesTotal,
		SceneDuration,
		TasksTotal,
	)
}

// ObserveDocument records one compiler run. A nil document means the scene
// had nothing to caption.
func ObserveDocument(doc *caption.Document) {
	if doc == nil {
		CaptionSkippedTotal.Inc()
		return
	}
	tokens := 0
	for _, c := range doc.Cues {
		tokens = max(tokens, c.Index+1)
		CaptionCuesTotal.WithLabelValues(c.Layer.String()).Inc()
	}
	CaptionDocumentsTotal.Inc()
	CaptionTokens.Observe(float64(tokens))
}

// InstrumentHandler returns middleware that records HTTP request metrics.
// It uses chi's route pattern as the path label to avoid cardinality explosion.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		pattern := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the Flusher for SSE.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
