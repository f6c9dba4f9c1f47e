package metrics

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travesia_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travesia_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "endpoint"})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travesia_payment_sessions_opened_total",
		Help: "Payment sessions opened",
	})

	// Submissions is labelled by outcome: ok, replayed, rejected, failed.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travesia_payment_submissions_total",
		Help: "Payment submissions by outcome",
	}, []string{"outcome"})

	SubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "travesia_payment_submit_duration_seconds",
		Help:    "Backend submission latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ImportedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travesia_import_rows_total",
		Help: "Imported rows by processor type",
	}, []string{"type"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency per route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()

		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
