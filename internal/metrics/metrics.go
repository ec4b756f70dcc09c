package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotnik",
			Name:      "bookings_created_total",
			Help:      "Successfully created bookings.",
		},
	)

	bookingsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotnik",
			Name:      "bookings_cancelled_total",
			Help:      "Cancelled bookings by actor.",
		},
		[]string{"by"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotnik",
			Name:      "slot_conflicts_total",
			Help:      "Create attempts rejected because the slot was locked.",
		},
	)

	storeRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotnik",
			Name:      "store_retries_total",
			Help:      "Transaction retries caused by write conflicts.",
		},
	)

	bookingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotnik",
			Name:      "booking_failures_total",
			Help:      "Failed booking operations by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingsCancelled,
			slotConflicts,
			storeRetries,
			bookingFailures,
		)
	})
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncBookingCancelled records a cancellation by actor ("user" or "admin").
func IncBookingCancelled(by string) {
	bookingsCancelled.WithLabelValues(by).Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncStoreRetry() {
	storeRetries.Inc()
}

func IncBookingFailure(reason string) {
	bookingFailures.WithLabelValues(reason).Inc()
}
