package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/catalog"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/metrics"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/pricing"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

// PaymentGateway moves money for a booking. Amounts are minor units.
type PaymentGateway interface {
	Capture(ctx context.Context, b *Booking) error
	Refund(ctx context.Context, b *Booking, amount int64) error
	AdditionalCharge(ctx context.Context, b *Booking, amount int64) error
	PartialRefund(ctx context.Context, b *Booking, amount int64) error
	Payout(ctx context.Context, b *Booking, amount int64) error
}

// Notifier delivers booking events to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID string, b *Booking, t NotificationType) error
}

type SlotsRequest struct {
	MasterID        string
	ServiceID       string
	Date            time.Time
	DurationMinutes int
}

type Service interface {
	Create(ctx context.Context, actor auth.Identity, req CreateRequest) (*Result, error)
	Manage(ctx context.Context, actor auth.Identity, id string, req ManageRequest) (*Result, error)
	Get(ctx context.Context, actor auth.Identity, id string) (*Booking, error)
	List(ctx context.Context, actor auth.Identity, filter ListFilter) (*Page, error)
	AvailableSlots(ctx context.Context, req SlotsRequest) ([]schedule.Slot, error)
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repo     Repository
	catalog  catalog.Repository
	payments PaymentGateway
	notifier Notifier
	policy   Policy
	machine  *StateMachine
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(
	repo Repository,
	catalogRepo catalog.Repository,
	payments PaymentGateway,
	notifier Notifier,
	policy Policy,
	opts ...Option,
) Service {
	s := &service{
		repo:     repo,
		catalog:  catalogRepo,
		payments: payments,
		notifier: notifier,
		policy:   policy,
		machine:  NewStateMachine(policy),
		tracer:   otel.Tracer("booking"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, actor auth.Identity, req CreateRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Create", trace.WithAttributes(
		attribute.String("master_id", req.MasterID),
		attribute.String("service_id", req.ServiceID),
	))
	defer func() { endSpan(span, err) }()

	clientID, err := resolveClient(actor, req.ClientID)
	if err != nil {
		return nil, err
	}
	if req.ServiceID == "" || req.MasterID == "" {
		return nil, validationError("service_id and master_id are required")
	}

	now := s.now()
	if req.DurationMinutes != 0 {
		if err := s.policy.ValidateSchedule(req.ScheduledStart, req.DurationMinutes, now); err != nil {
			return nil, err
		}
	}

	svc, err := s.lookupService(ctx, req.ServiceID, req.MasterID)
	if err != nil {
		return nil, err
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = svc.DurationMinutes
		if err := s.policy.ValidateSchedule(req.ScheduledStart, duration, now); err != nil {
			return nil, err
		}
	}

	start := req.ScheduledStart.UTC()
	end := start.Add(time.Duration(duration) * time.Minute)

	occupied, err := s.repo.QueryMasterBookingsInRange(ctx, req.MasterID, start, end, "")
	if err != nil {
		return nil, err
	}
	requested := schedule.Interval{Start: start, End: end}
	if clash, found := schedule.FirstConflict(requested, intervals(occupied), ""); found {
		metrics.RecordConflict()
		logger.Info("booking request overlaps existing booking",
			"master_id", req.MasterID, "conflicting_booking_id", clash.ID)
		return nil, ErrSlotUnavailable
	}

	urgent := pricing.IsUrgent(start, now)
	total := pricing.TotalAmount(svc.BasePrice, urgent)
	b := &Booking{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		MasterID:        req.MasterID,
		ServiceID:       req.ServiceID,
		ServiceName:     svc.Name,
		ScheduledStart:  start,
		ScheduledEnd:    end,
		DurationMinutes: duration,
		BaseAmount:      svc.BasePrice,
		UrgentFee:       total - svc.BasePrice,
		PlatformFee:     pricing.PlatformFee(total),
		TotalAmount:     total,
		UrgentBooking:   urgent,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.machine.Initial(b, svc.AutoConfirm, now)

	if err := s.repo.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			metrics.RecordConflict()
		}
		return nil, err
	}

	metrics.RecordBooking(string(b.Status), b.UrgentBooking)
	logger.Info("booking created",
		"booking_id", b.ID, "master_id", b.MasterID, "status", b.Status, "total_amount", b.TotalAmount)

	var warnings []string
	if b.Status == StatusConfirmed {
		s.sideEffect(&warnings, "capture", func() error { return s.payments.Capture(ctx, b) })
	}
	s.notify(ctx, &warnings, []string{b.ClientID, b.MasterID}, b, NotifyNewBooking)

	return &Result{Booking: b, Warnings: warnings}, nil
}

func (s *service) Manage(ctx context.Context, actor auth.Identity, id string, req ManageRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Manage", trace.WithAttributes(
		attribute.String("booking_id", id),
		attribute.String("action", string(req.Action)),
	))
	defer func() {
		recordTransition(req.Action, err)
		endSpan(span, err)
	}()

	now := s.now()
	current, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}

	var patch Patch
	switch req.Action {
	case ActionConfirm:
		patch, err = s.machine.Confirm(current, actor, now)
	case ActionCancel:
		patch, err = s.machine.Cancel(current, actor, now)
	case ActionReschedule:
		patch, err = s.reschedule(ctx, current, actor, req, now)
	case ActionStart:
		patch, err = s.machine.Start(current, actor, now)
	case ActionComplete:
		patch, err = s.machine.Complete(current, actor, now)
	default:
		err = validationError("unknown action %q", req.Action)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateBooking(ctx, current.ID, patch)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			metrics.RecordConflict()
		}
		return nil, err
	}

	logger.Info("booking updated",
		"booking_id", updated.ID, "action", req.Action, "from", current.Status, "to", updated.Status)

	warnings := s.afterTransition(ctx, actor, current, updated, patch)
	return &Result{Booking: updated, Warnings: warnings}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Identity, id string) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Get", trace.WithAttributes(attribute.String("booking_id", id)))
	defer span.End()

	b, err := s.load(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !canActAsParticipant(b, actor) {
		return nil, permissionDenied("view")
	}
	return b, nil
}

func (s *service) List(ctx context.Context, actor auth.Identity, filter ListFilter) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, "booking.List")
	defer span.End()

	switch actor.Role {
	case auth.RoleClient:
		filter.ClientID, filter.MasterID = actor.UserID, ""
	case auth.RoleMaster:
		filter.ClientID, filter.MasterID = "", actor.UserID
	case auth.RoleAdmin:
	default:
		return nil, permissionDenied("list")
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationError("unknown status %q", filter.Status)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, validationError("from must be before to")
	}
	filter.normalize()

	items, total, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &Page{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *service) AvailableSlots(ctx context.Context, req SlotsRequest) ([]schedule.Slot, error) {
	ctx, span := s.tracer.Start(ctx, "booking.AvailableSlots", trace.WithAttributes(
		attribute.String("master_id", req.MasterID),
	))
	defer span.End()

	svc, err := s.lookupService(ctx, req.ServiceID, req.MasterID)
	if err != nil {
		return nil, err
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = svc.DurationMinutes
	}
	if duration < s.policy.MinDuration || duration > s.policy.MaxDuration {
		return nil, validationError("duration must be between %d and %d minutes", s.policy.MinDuration, s.policy.MaxDuration)
	}

	loc := s.policy.Location
	y, m, d := req.Date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	workWindows, err := s.catalog.GetMasterAvailability(ctx, req.MasterID, dayStart.Weekday())
	if err != nil {
		return nil, err
	}
	windows := make([]schedule.Window, 0, len(workWindows))
	for _, ww := range workWindows {
		w, err := ww.Window()
		if err != nil {
			logger.WithError(err).Warn("skipping malformed work window", "master_id", req.MasterID)
			continue
		}
		windows = append(windows, w)
	}

	occupied, err := s.repo.QueryMasterBookingsInRange(ctx, req.MasterID, dayStart, dayEnd, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	q := schedule.SlotQuery{
		Date:      dayStart,
		Location:  loc,
		Duration:  time.Duration(duration) * time.Minute,
		Occupied:  intervals(occupied),
		BasePrice: svc.BasePrice,
		Now:       now,
	}

	slots := []schedule.Slot{}
	for slot := range schedule.DaySlots(q, windows) {
		if s.policy.ValidateSchedule(slot.Start, duration, now) != nil {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// load fetches a booking and expires it first if its confirmation deadline
// has passed.
func (s *service) load(ctx context.Context, id string, now time.Time) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, stale := s.machine.Expire(b, now)
	if !stale {
		return b, nil
	}

	expired, err := s.repo.UpdateBooking(ctx, b.ID, patch)
	if errors.Is(err, ErrStaleState) {
		return s.repo.GetBooking(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	recordTransition(ActionExpire, nil)
	logger.Info("pending booking expired", "booking_id", b.ID, "expires_at", b.ExpiresAt)
	return expired, nil
}

func (s *service) reschedule(ctx context.Context, b *Booking, actor auth.Identity, req ManageRequest, now time.Time) (Patch, error) {
	if req.ScheduledStart == nil {
		return Patch{}, validationError("scheduled_start is required to reschedule")
	}

	in := RescheduleInput{Start: req.ScheduledStart.UTC(), DurationMinutes: req.DurationMinutes}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = b.DurationMinutes
	}
	end := in.Start.Add(time.Duration(duration) * time.Minute)

	occupied, err := s.repo.QueryMasterBookingsInRange(ctx, b.MasterID, in.Start, end, b.ID)
	if err != nil {
		return Patch{}, err
	}

	patch, err := s.machine.Reschedule(b, actor, in, intervals(occupied), now)
	if errors.Is(err, ErrSlotUnavailable) {
		metrics.RecordConflict()
	}
	return patch, err
}

func (s *service) afterTransition(ctx context.Context, actor auth.Identity, before, after *Booking, patch Patch) []string {
	var warnings []string
	recipients := counterparties(after, actor)

	switch patch.Action {
	case ActionConfirm:
		s.sideEffect(&warnings, "capture", func() error { return s.payments.Capture(ctx, after) })
		s.notify(ctx, &warnings, recipients, after, NotifyConfirmed)

	case ActionCancel:
		if before.Status == StatusConfirmed && after.RefundAmount != nil && *after.RefundAmount > 0 {
			s.sideEffect(&warnings, "refund", func() error { return s.payments.Refund(ctx, after, *after.RefundAmount) })
		}
		s.notify(ctx, &warnings, recipients, after, NotifyCancelled)

	case ActionReschedule:
		if before.Status == StatusConfirmed {
			switch {
			case patch.PriceDelta > 0:
				s.sideEffect(&warnings, "additional_charge", func() error {
					return s.payments.AdditionalCharge(ctx, after, patch.PriceDelta)
				})
			case patch.PriceDelta < 0:
				s.sideEffect(&warnings, "partial_refund", func() error {
					return s.payments.PartialRefund(ctx, after, -patch.PriceDelta)
				})
			}
		}
		s.notify(ctx, &warnings, recipients, after, NotifyRescheduled)

	case ActionStart:
		s.notify(ctx, &warnings, recipients, after, NotifyStarted)

	case ActionComplete:
		amount := pricing.PayoutAmount(after.TotalAmount, after.PlatformFee)
		s.sideEffect(&warnings, "payout", func() error { return s.payments.Payout(ctx, after, amount) })
		s.notify(ctx, &warnings, recipients, after, NotifyCompleted)
	}

	return warnings
}

// sideEffect runs a secondary effect. A failure is logged and reported as a
// warning; it never undoes the transition that triggered it.
func (s *service) sideEffect(warnings *[]string, effect string, fn func() error) {
	if err := fn(); err != nil {
		metrics.RecordSideEffectFailure(effect)
		logger.WithError(err).Error("booking side effect failed", "effect", effect)
		*warnings = append(*warnings, fmt.Sprintf("%s failed", effect))
	}
}

func (s *service) notify(ctx context.Context, warnings *[]string, recipients []string, b *Booking, t NotificationType) {
	for _, userID := range recipients {
		if err := s.notifier.Notify(ctx, userID, b, t); err != nil {
			metrics.RecordSideEffectFailure("notify")
			logger.WithError(err).Warn("booking notification failed",
				"booking_id", b.ID, "user_id", userID, "type", t)
			*warnings = append(*warnings, fmt.Sprintf("notification to %s failed", userID))
		}
	}
}

func (s *service) lookupService(ctx context.Context, serviceID, masterID string) (*catalog.ServiceInfo, error) {
	if _, err := s.catalog.GetMaster(ctx, masterID); err != nil {
		if errors.Is(err, catalog.ErrMasterNotFound) {
			return nil, ErrMasterNotFound
		}
		return nil, err
	}

	svc, err := s.catalog.GetServiceInfo(ctx, serviceID, masterID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	if !svc.Bookable() {
		return nil, validationError("service %s does not accept instant bookings", serviceID)
	}
	return svc, nil
}

// resolveClient returns the client a new booking is made for. Clients book
// for themselves; admins book on behalf of a named client.
func resolveClient(actor auth.Identity, requested string) (string, error) {
	switch actor.Role {
	case auth.RoleClient:
		if requested != "" && requested != actor.UserID {
			return "", permissionDenied("create")
		}
		return actor.UserID, nil
	case auth.RoleAdmin:
		if requested == "" {
			return "", validationError("client_id is required when booking on behalf of a client")
		}
		return requested, nil
	}
	return "", permissionDenied("create")
}

// counterparties are the users told about a change made by actor.
func counterparties(b *Booking, actor auth.Identity) []string {
	switch actor.UserID {
	case b.ClientID:
		return []string{b.MasterID}
	case b.MasterID:
		return []string{b.ClientID}
	}
	return []string{b.ClientID, b.MasterID}
}

func recordTransition(action Action, err error) {
	result := "ok"
	if err != nil {
		result = Code(err)
	}
	metrics.RecordTransition(string(action), result)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
