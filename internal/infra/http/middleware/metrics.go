package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	inFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_http_in_flight_requests",
			Help: "Requests currently being served",
		},
	)

	aiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_ai_requests_total",
			Help: "Generative model requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	webhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_webhooks_received_total",
			Help: "Inbound provider webhooks by provider and event",
		},
		[]string{"provider", "event"},
	)

	automationTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_automation_tasks_created_total",
			Help: "Follow-up tasks created by automation rules",
		},
		[]string{"rule"},
	)

	overdueTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_tasks_overdue",
			Help: "Open tasks past their due date at the last sweep",
		},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics labels requests with the chi route pattern, not the raw path, so ids
// do not explode the label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func RecordAIRequest(operation, outcome string) {
	aiRequests.WithLabelValues(operation, outcome).Inc()
}

// webhookEvents is the closed label set per provider. Event names come from
// unauthenticated payloads, so anything else is counted as "other".
var webhookEvents = map[string]map[string]bool{
	"calendly": set("invitee.created", "invitee.canceled"),
	"email":    set("open", "click", "bounce", "delivered"),
	"twilio": set(
		"voice.recording",
		"voice.status.queued", "voice.status.initiated", "voice.status.ringing",
		"voice.status.in-progress", "voice.status.completed", "voice.status.busy",
		"voice.status.failed", "voice.status.no-answer", "voice.status.canceled",
	),
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func RecordWebhook(provider, event string) {
	known, ok := webhookEvents[provider]
	switch {
	case !ok:
		provider, event = "other", "other"
	case event == "":
		event = "unknown"
	case !known[event]:
		event = "other"
	}
	webhooksReceived.WithLabelValues(provider, event).Inc()
}

func RecordAutomationTasks(rule string, n int) {
	automationTasks.WithLabelValues(rule).Add(float64(n))
}

func SetOverdueTasks(n int) {
	overdueTasks.Set(float64(n))
}
