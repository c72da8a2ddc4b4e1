package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the case lifecycle domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	expiredTotal    *prometheus.CounterVec
	ballotTotal     *prometheus.CounterVec
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_transitions_total",
		Help: "Case state machine transitions applied",
	}, []string{"event"})

	expiredTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadlines_expired_total",
		Help: "Deadlines expired by the sweep",
	}, []string{"phase"})

	ballotTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ballots_total",
		Help: "Ballot gate outcomes",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitionTotal, expiredTotal, ballotTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitionTotal: transitionTotal,
		expiredTotal:    expiredTotal,
		ballotTotal:     ballotTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveTransition counts an applied state machine transition.
func (s *MetricsService) ObserveTransition(event string) {
	s.transitionTotal.WithLabelValues(event).Inc()
}

// ObserveExpiredDeadline counts a deadline claimed by the sweep.
func (s *MetricsService) ObserveExpiredDeadline(phase string) {
	s.expiredTotal.WithLabelValues(phase).Inc()
}

// ObserveBallot counts a ballot gate outcome (accepted, rejected code).
func (s *MetricsService) ObserveBallot(result string) {
	s.ballotTotal.WithLabelValues(result).Inc()
}
