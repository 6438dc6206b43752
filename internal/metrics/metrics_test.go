package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/bookings", "200", 0.5)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/bookings", "200"))
	assert.Equal(t, float64(1), count)
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordHTTPRequestMultiple(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/bookings", "201", 0.1)
	RecordHTTPRequest("POST", "/bookings", "201", 0.2)
	RecordHTTPRequest("POST", "/bookings", "409", 0.05)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/bookings", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/bookings", "409")))
}

func TestRecordBooking(t *testing.T) {
	BookingsTotal.Reset()

	RecordBooking("CONFIRMED", true)
	RecordBooking("PENDING", false)
	RecordBooking("PENDING", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("CONFIRMED", "true")))
	assert.Equal(t, float64(2), testutil.ToFloat64(BookingsTotal.WithLabelValues("PENDING", "false")))
}

func TestRecordTransition(t *testing.T) {
	BookingTransitionsTotal.Reset()

	RecordTransition("confirm", "ok")
	RecordTransition("confirm", "CONFLICT")
	RecordTransition("cancel", "ok")

	assert.Equal(t, float64(1), testutil.ToFloat64(BookingTransitionsTotal.WithLabelValues("confirm", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingTransitionsTotal.WithLabelValues("confirm", "CONFLICT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingTransitionsTotal.WithLabelValues("cancel", "ok")))
}

func TestRecordConflict(t *testing.T) {
	testCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "handshake_booking_conflicts_total_test",
		Help: "Requests rejected because the master was already booked",
	})

	old := BookingConflictsTotal
	BookingConflictsTotal = testCounter
	defer func() { BookingConflictsTotal = old }()

	RecordConflict()
	RecordConflict()

	assert.Equal(t, float64(2), testutil.ToFloat64(testCounter))
}

func TestRecordSideEffectFailure(t *testing.T) {
	SideEffectFailuresTotal.Reset()

	RecordSideEffectFailure("capture")
	RecordSideEffectFailure("notify")
	RecordSideEffectFailure("notify")

	assert.Equal(t, float64(1), testutil.ToFloat64(SideEffectFailuresTotal.WithLabelValues("capture")))
	assert.Equal(t, float64(2), testutil.ToFloat64(SideEffectFailuresTotal.WithLabelValues("notify")))
}

func TestRecordPaymentAndNotification(t *testing.T) {
	PaymentsTotal.Reset()
	NotificationsTotal.Reset()

	RecordPayment("PAYMENT", "COMPLETED")
	RecordNotification("NEW_BOOKING", "sent")
	RecordNotification("NEW_BOOKING", "failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(PaymentsTotal.WithLabelValues("PAYMENT", "COMPLETED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(NotificationsTotal.WithLabelValues("NEW_BOOKING", "sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(NotificationsTotal.WithLabelValues("NEW_BOOKING", "failed")))
}

func TestNotificationQueueLength(t *testing.T) {
	NotificationQueueLength.Set(10)
	assert.Equal(t, float64(10), testutil.ToFloat64(NotificationQueueLength))

	SetNotificationQueueLength(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(NotificationQueueLength))
}

func TestRecordRateLimited(t *testing.T) {
	before := testutil.ToFloat64(RateLimitedTotal)
	RecordRateLimited()
	assert.Equal(t, before+1, testutil.ToFloat64(RateLimitedTotal))
}
