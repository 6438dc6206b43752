package booking

import (
	"fmt"
	"time"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/pricing"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionExpire     Action = "expire"
)

// Patch is the set of fields a single transition is allowed to change.
// From is the status the booking must still be in when the patch is written.
type Patch struct {
	Action Action
	From   Status

	Status          *Status
	ScheduledStart  *time.Time
	DurationMinutes *int
	UrgentBooking   *bool
	UrgentFee       *int64
	PlatformFee     *int64
	TotalAmount     *int64
	CancellationFee *int64
	RefundAmount    *int64

	ConfirmedAt    *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	RescheduledAt  *time.Time
	ExpiredAt      *time.Time
	ExpiresAt      *time.Time
	ClearExpiresAt bool

	// PriceDelta is the amount to charge (positive) or refund (negative)
	// because of a reschedule. It is not stored.
	PriceDelta int64

	UpdatedAt time.Time
}

// Apply returns a copy of b with the patch applied.
func (p Patch) Apply(b *Booking) *Booking {
	next := *b
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.ScheduledStart != nil {
		next.ScheduledStart = *p.ScheduledStart
	}
	if p.DurationMinutes != nil {
		next.DurationMinutes = *p.DurationMinutes
	}
	next.ScheduledEnd = next.ScheduledStart.Add(time.Duration(next.DurationMinutes) * time.Minute)
	if p.UrgentBooking != nil {
		next.UrgentBooking = *p.UrgentBooking
	}
	if p.UrgentFee != nil {
		next.UrgentFee = *p.UrgentFee
	}
	if p.PlatformFee != nil {
		next.PlatformFee = *p.PlatformFee
	}
	if p.TotalAmount != nil {
		next.TotalAmount = *p.TotalAmount
	}
	if p.CancellationFee != nil {
		next.CancellationFee = p.CancellationFee
	}
	if p.RefundAmount != nil {
		next.RefundAmount = p.RefundAmount
	}
	if p.ConfirmedAt != nil {
		next.ConfirmedAt = p.ConfirmedAt
	}
	if p.StartedAt != nil {
		next.StartedAt = p.StartedAt
	}
	if p.CompletedAt != nil {
		next.CompletedAt = p.CompletedAt
	}
	if p.CancelledAt != nil {
		next.CancelledAt = p.CancelledAt
	}
	if p.RescheduledAt != nil {
		next.RescheduledAt = p.RescheduledAt
	}
	if p.ExpiredAt != nil {
		next.ExpiredAt = p.ExpiredAt
	}
	if p.ExpiresAt != nil {
		next.ExpiresAt = p.ExpiresAt
	}
	if p.ClearExpiresAt {
		next.ExpiresAt = nil
	}
	if !p.UpdatedAt.IsZero() {
		next.UpdatedAt = p.UpdatedAt
	}
	return &next
}

// ChangesOccupancy reports whether the patch can add or move an interval on
// the master's calendar, which requires a conflict check before writing.
func (p Patch) ChangesOccupancy() bool {
	return p.ScheduledStart != nil || p.DurationMinutes != nil || (p.Status != nil && p.Status.IsActive())
}

// StateMachine validates booking transitions and produces the patch each one
// is allowed to write.
type StateMachine struct {
	policy Policy
}

func NewStateMachine(policy Policy) *StateMachine {
	return &StateMachine{policy: policy}
}

// Initial sets the starting status of a new booking. Auto-confirmed bookings
// skip the pending window entirely.
func (m *StateMachine) Initial(b *Booking, autoConfirm bool, now time.Time) {
	b.AutoConfirmed = autoConfirm
	if autoConfirm {
		b.Status = StatusConfirmed
		b.ConfirmedAt = ptr(now)
		b.ExpiresAt = nil
		return
	}
	b.Status = StatusPending
	b.ExpiresAt = ptr(m.policy.expiresAt(now, b.ScheduledStart))
}

// Expire returns the patch moving a stale pending booking to EXPIRED.
func (m *StateMachine) Expire(b *Booking, now time.Time) (Patch, bool) {
	if !b.IsStale(now) {
		return Patch{}, false
	}
	return Patch{
		Action:    ActionExpire,
		From:      StatusPending,
		Status:    ptr(StatusExpired),
		ExpiredAt: ptr(now),
		UpdatedAt: now,
	}, true
}

func (m *StateMachine) Confirm(b *Booking, actor auth.Identity, now time.Time) (Patch, error) {
	if !canActAsMaster(b, actor) {
		return Patch{}, permissionDenied(ActionConfirm)
	}
	if b.Status == StatusExpired || b.IsStale(now) {
		return Patch{}, ErrBookingExpired
	}
	if b.Status != StatusPending {
		return Patch{}, invalidState(ActionConfirm, b.Status)
	}
	return Patch{
		Action:         ActionConfirm,
		From:           StatusPending,
		Status:         ptr(StatusConfirmed),
		ConfirmedAt:    ptr(now),
		ClearExpiresAt: true,
		UpdatedAt:      now,
	}, nil
}

func (m *StateMachine) Cancel(b *Booking, actor auth.Identity, now time.Time) (Patch, error) {
	if !canActAsParticipant(b, actor) {
		return Patch{}, permissionDenied(ActionCancel)
	}
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return Patch{}, invalidState(ActionCancel, b.Status)
	}

	fee, refund := pricing.CancellationFee(b.TotalAmount, b.ScheduledStart, b.Status == StatusConfirmed, now)
	return Patch{
		Action:          ActionCancel,
		From:            b.Status,
		Status:          ptr(StatusCancelled),
		CancellationFee: ptr(fee),
		RefundAmount:    ptr(refund),
		CancelledAt:     ptr(now),
		ClearExpiresAt:  true,
		UpdatedAt:       now,
	}, nil
}

// RescheduleInput is the requested new time. A zero DurationMinutes keeps
// the current duration.
type RescheduleInput struct {
	Start           time.Time
	DurationMinutes int
}

// Reschedule moves the booking to a new interval. occupied must hold the
// master's active bookings around the new interval; the booking itself is
// ignored when checking for conflicts. The status does not change.
func (m *StateMachine) Reschedule(b *Booking, actor auth.Identity, in RescheduleInput, occupied []schedule.Interval, now time.Time) (Patch, error) {
	if !canActAsParticipant(b, actor) {
		return Patch{}, permissionDenied(ActionReschedule)
	}
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return Patch{}, invalidState(ActionReschedule, b.Status)
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = b.DurationMinutes
	}
	if err := m.policy.ValidateSchedule(in.Start, duration, now); err != nil {
		return Patch{}, err
	}

	requested := schedule.Interval{Start: in.Start, End: in.Start.Add(time.Duration(duration) * time.Minute)}
	if !schedule.Admissible(requested, occupied, b.ID) {
		return Patch{}, ErrSlotUnavailable
	}

	urgent := pricing.IsUrgent(in.Start, now)
	delta, urgentFee := pricing.RescheduleDelta(b.UrgentBooking, urgent, b.BaseAmount, b.UrgentFee)
	total := b.BaseAmount + urgentFee

	patch := Patch{
		Action:          ActionReschedule,
		From:            b.Status,
		ScheduledStart:  ptr(in.Start),
		DurationMinutes: ptr(duration),
		UrgentBooking:   ptr(urgent),
		UrgentFee:       ptr(urgentFee),
		TotalAmount:     ptr(total),
		PlatformFee:     ptr(pricing.PlatformFee(total)),
		RescheduledAt:   ptr(now),
		PriceDelta:      delta,
		UpdatedAt:       now,
	}
	// A pending deadline never runs past the start.
	if b.Status == StatusPending && b.ExpiresAt != nil && b.ExpiresAt.After(in.Start) {
		patch.ExpiresAt = ptr(in.Start)
	}
	return patch, nil
}

func (m *StateMachine) Start(b *Booking, actor auth.Identity, now time.Time) (Patch, error) {
	if !canActAsMaster(b, actor) {
		return Patch{}, permissionDenied(ActionStart)
	}
	if b.Status != StatusConfirmed {
		return Patch{}, invalidState(ActionStart, b.Status)
	}
	if diff := now.Sub(b.ScheduledStart).Abs(); diff > m.policy.StartWindow {
		return Patch{}, fmt.Errorf("%w: a booking can only be started within %s of its scheduled start", ErrInvalidState, m.policy.StartWindow)
	}
	return Patch{
		Action:    ActionStart,
		From:      StatusConfirmed,
		Status:    ptr(StatusInProgress),
		StartedAt: ptr(now),
		UpdatedAt: now,
	}, nil
}

func (m *StateMachine) Complete(b *Booking, actor auth.Identity, now time.Time) (Patch, error) {
	if !canActAsMaster(b, actor) {
		return Patch{}, permissionDenied(ActionComplete)
	}
	if b.Status != StatusInProgress {
		return Patch{}, invalidState(ActionComplete, b.Status)
	}
	return Patch{
		Action:      ActionComplete,
		From:        StatusInProgress,
		Status:      ptr(StatusCompleted),
		CompletedAt: ptr(now),
		UpdatedAt:   now,
	}, nil
}

func canActAsMaster(b *Booking, actor auth.Identity) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleMaster:
		return actor.UserID == b.MasterID
	}
	return false
}

func canActAsParticipant(b *Booking, actor auth.Identity) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleMaster:
		return actor.UserID == b.MasterID
	case auth.RoleClient:
		return actor.UserID == b.ClientID
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
