package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handshake_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_bookings_created_total",
			Help: "Total number of bookings created, by initial status",
		},
		[]string{"status", "urgent"},
	)

	BookingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_booking_transitions_total",
			Help: "Booking lifecycle actions by outcome",
		},
		[]string{"action", "result"},
	)

	BookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "handshake_booking_conflicts_total",
			Help: "Requests rejected because the master was already booked",
		},
	)

	SideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_side_effect_failures_total",
			Help: "Payment and notification calls that failed after a booking was persisted",
		},
		[]string{"effect"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_payments_total",
			Help: "Payment operations sent to the provider",
		},
		[]string{"type", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_notifications_total",
			Help: "Booking notifications processed",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "handshake_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "handshake_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status string, urgent bool) {
	u := "false"
	if urgent {
		u = "true"
	}
	BookingsTotal.WithLabelValues(status, u).Inc()
}

func RecordTransition(action, result string) {
	BookingTransitionsTotal.WithLabelValues(action, result).Inc()
}

func RecordConflict() {
	BookingConflictsTotal.Inc()
}

func RecordSideEffectFailure(effect string) {
	SideEffectFailuresTotal.WithLabelValues(effect).Inc()
}

func RecordPayment(txType, status string) {
	PaymentsTotal.WithLabelValues(txType, status).Inc()
}

func RecordNotification(notificationType, status string) {
	NotificationsTotal.WithLabelValues(notificationType, status).Inc()
}

func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

func SetNotificationQueueLength(n int64) {
	NotificationQueueLength.Set(float64(n))
}
