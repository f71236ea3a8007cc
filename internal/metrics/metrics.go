package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "turfbook"

var (
	once sync.Once

	slotFetch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_fetch_total",
			Help:      "Count of slot list fetches by sport and status.",
		},
		[]string{"sport", "status"},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of per-slot booking requests by sport and status.",
		},
		[]string{"sport", "status"},
	)

	bookingCompensated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_compensated_total",
			Help:      "Count of bookings cancelled to roll back a partially failed batch.",
		},
		[]string{"sport"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of calls to the remote booking service.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live booking sessions by front-end.",
		},
		[]string{"frontend"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of web API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotFetch, bookingCreated, bookingCompensated, apiDuration, sessionsActive, httpRequests)
	})
}

func IncSlotFetch(sport, status string) {
	slotFetch.WithLabelValues(sport, status).Inc()
}

func IncBookingCreated(sport, status string) {
	bookingCreated.WithLabelValues(sport, status).Inc()
}

func IncBookingCompensated(sport string) {
	bookingCompensated.WithLabelValues(sport).Inc()
}

// ObserveAPI records the duration of a remote call started at start.
func ObserveAPI(method, endpoint string, start time.Time) {
	apiDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}

func SetSessionsActive(frontend string, n int) {
	sessionsActive.WithLabelValues(frontend).Set(float64(n))
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
