package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/catalog"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

// memRepo keeps bookings in memory and enforces the same write rules as the
// Postgres repository: per-master serialization and a status check on update.
type memRepo struct {
	mu       sync.Mutex
	bookings map[string]Booking
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: map[string]Booking{}}
}

func (r *memRepo) CreateBooking(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Status.IsActive() && r.overlapsLocked(b.MasterID, b.Interval(), b.ID) {
		return ErrSlotUnavailable
	}
	r.bookings[b.ID] = *b
	return nil
}

func (r *memRepo) GetBooking(_ context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *memRepo) UpdateBooking(_ context.Context, id string, patch Patch) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if current.Status != patch.From {
		return nil, ErrStaleState
	}

	next := patch.Apply(&current)
	if patch.ChangesOccupancy() && next.Status.IsActive() && r.overlapsLocked(next.MasterID, next.Interval(), next.ID) {
		return nil, ErrSlotUnavailable
	}
	r.bookings[id] = *next
	return next, nil
}

func (r *memRepo) QueryMasterBookingsInRange(_ context.Context, masterID string, start, end time.Time, excludeID string) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Booking{}
	for _, b := range r.bookings {
		if b.MasterID != masterID || !b.Status.IsActive() || b.ID == excludeID {
			continue
		}
		if schedule.Overlaps(b.ScheduledStart, b.ScheduledEnd, start, end) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

func (r *memRepo) ListBookings(_ context.Context, f ListFilter) ([]Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Booking{}
	for _, b := range r.bookings {
		if f.ClientID != "" && b.ClientID != f.ClientID {
			continue
		}
		if f.MasterID != "" && b.MasterID != f.MasterID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(b.ServiceName), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.After(out[j].ScheduledStart) })
	return out, len(out), nil
}

func (r *memRepo) overlapsLocked(masterID string, in schedule.Interval, excludeID string) bool {
	for _, b := range r.bookings {
		if b.MasterID == masterID && b.Status.IsActive() && b.ID != excludeID && in.Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetMaster(ctx context.Context, id string) (*catalog.Master, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Master), args.Error(1)
}

func (m *mockCatalog) GetServiceInfo(ctx context.Context, serviceID, masterID string) (*catalog.ServiceInfo, error) {
	args := m.Called(ctx, serviceID, masterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ServiceInfo), args.Error(1)
}

func (m *mockCatalog) GetMasterAvailability(ctx context.Context, masterID string, day time.Weekday) ([]catalog.WorkWindow, error) {
	args := m.Called(ctx, masterID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.WorkWindow), args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Capture(ctx context.Context, b *Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockPayments) Refund(ctx context.Context, b *Booking, amount int64) error {
	return m.Called(ctx, b, amount).Error(0)
}

func (m *mockPayments) AdditionalCharge(ctx context.Context, b *Booking, amount int64) error {
	return m.Called(ctx, b, amount).Error(0)
}

func (m *mockPayments) PartialRefund(ctx context.Context, b *Booking, amount int64) error {
	return m.Called(ctx, b, amount).Error(0)
}

func (m *mockPayments) Payout(ctx context.Context, b *Booking, amount int64) error {
	return m.Called(ctx, b, amount).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, userID string, b *Booking, t NotificationType) error {
	return m.Called(ctx, userID, b, t).Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}
