package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/coursekit/mailsched/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Program runner metrics

	ProgramsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Name:      "programs_processed_total",
		Help:      "Total due programs handled, by outcome.",
	}, []string{"outcome"})

	ProgramCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mailsched",
		Name:      "program_cycle_duration_seconds",
		Help:      "Time taken for one program scheduler invocation.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	// Automation runner metrics

	EnrollmentsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Name:      "enrollments_processed_total",
		Help:      "Total due enrollments handled, by outcome.",
	}, []string{"outcome"})

	AutomationCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mailsched",
		Name:      "automation_cycle_duration_seconds",
		Help:      "Time taken for one automation scheduler invocation.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	// Gateway metrics

	EmailsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailsched",
		Name:      "emails_sent_total",
		Help:      "Total individual emails handed to the gateway.",
	})

	GatewayBatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mailsched",
		Name:      "gateway_batch_duration_seconds",
		Help:      "Duration of one gateway batch call.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"status"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mailsched",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ProgramsProcessedTotal,
		ProgramCycleDuration,
		EnrollmentsProcessedTotal,
		AutomationCycleDuration,
		EmailsSentTotal,
		GatewayBatchDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, status int, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
