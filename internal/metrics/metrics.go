package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "turfslot"

var (
	once sync.Once

	slotClicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_clicks_total",
			Help:      "Count of slot clicks by resulting action.",
		},
		[]string{"action"},
	)

	availabilityFetch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_fetch_total",
			Help:      "Count of booked-slot fetches by result.",
		},
		[]string{"result"},
	)

	bookingSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Count of booking submissions by result.",
		},
		[]string{"result"},
	)

	submitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_submit_duration_seconds",
			Help:      "Latency of booking submissions.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Count of bookings stored by the backend.",
		},
	)

	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			slotClicks,
			availabilityFetch,
			bookingSubmissions,
			submitDuration,
			httpRequests,
			bookingsCreated,
			bookingsCancelled,
		)
	})
}

func IncSlotClick(action string) {
	slotClicks.WithLabelValues(action).Inc()
}

func IncAvailabilityFetch(result string) {
	availabilityFetch.WithLabelValues(result).Inc()
}

// ObserveSubmission records the outcome and latency of one submit.
func ObserveSubmission(result string, elapsed time.Duration) {
	bookingSubmissions.WithLabelValues(result).Inc()
	submitDuration.Observe(elapsed.Seconds())
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingCancelled() {
	bookingsCancelled.Inc()
}
