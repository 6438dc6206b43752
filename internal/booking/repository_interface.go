package booking

import (
	"context"
	"time"
)

type Repository interface {
	// CreateBooking persists a new booking. Active bookings are only written
	// when they do not overlap another active booking of the same master.
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	// UpdateBooking applies patch if the booking is still in patch.From and
	// returns the updated booking.
	UpdateBooking(ctx context.Context, id string, patch Patch) (*Booking, error)
	// QueryMasterBookingsInRange returns the master's CONFIRMED and
	// IN_PROGRESS bookings overlapping [start, end), skipping excludeID.
	QueryMasterBookingsInRange(ctx context.Context, masterID string, start, end time.Time, excludeID string) ([]Booking, error)
	ListBookings(ctx context.Context, filter ListFilter) ([]Booking, int, error)
}
