// Package pricing computes booking prices and fees. All amounts are integer
// minor currency units; percentages are applied with decimal arithmetic and
// rounded half away from zero.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UrgentWindow = 2 * time.Hour

	lateCancelWindow  = 2 * time.Hour
	shortCancelWindow = 24 * time.Hour
)

var (
	urgentRate      = decimal.RequireFromString("0.25")
	platformRate    = decimal.RequireFromString("0.05")
	lateCancelRate  = decimal.RequireFromString("0.50")
	shortCancelRate = decimal.RequireFromString("0.25")
)

// IsUrgent reports whether a booking starting at start is inside the urgent window.
func IsUrgent(start, now time.Time) bool {
	return start.Sub(now) < UrgentWindow
}

func UrgentFee(base int64) int64 {
	return percent(base, urgentRate)
}

func PlatformFee(total int64) int64 {
	return percent(total, platformRate)
}

func TotalAmount(base int64, urgent bool) int64 {
	if urgent {
		return base + UrgentFee(base)
	}
	return base
}

// PayoutAmount is what the master receives once the platform takes its cut.
func PayoutAmount(total, platformFee int64) int64 {
	return total - platformFee
}

// CancellationFee returns the fee withheld and the amount refunded when a
// booking is cancelled at now. Bookings that were never confirmed are
// refunded in full.
func CancellationFee(total int64, start time.Time, wasConfirmed bool, now time.Time) (fee, refund int64) {
	if !wasConfirmed {
		return 0, total
	}

	lead := start.Sub(now)
	switch {
	case lead < lateCancelWindow:
		fee = percent(total, lateCancelRate)
	case lead < shortCancelWindow:
		fee = percent(total, shortCancelRate)
	}
	return fee, total - fee
}

// RescheduleDelta returns the price difference caused by moving a booking and
// the urgent fee the booking carries afterwards. A positive delta must be
// charged, a negative one refunded. A booking that stays urgent is charged only
// the difference between its new and old urgent fee, which is zero while the
// base price is unchanged.
func RescheduleDelta(oldUrgent, newUrgent bool, base, oldUrgentFee int64) (delta, newUrgentFee int64) {
	switch {
	case newUrgent && !oldUrgent:
		newUrgentFee = UrgentFee(base)
		return newUrgentFee, newUrgentFee
	case !newUrgent && oldUrgent:
		return -oldUrgentFee, 0
	case newUrgent && oldUrgent:
		newUrgentFee = UrgentFee(base)
		return newUrgentFee - oldUrgentFee, newUrgentFee
	default:
		return 0, 0
	}
}

func percent(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}
