package booking

import (
	"time"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

// Policy holds the scheduling rules a requested time has to satisfy.
type Policy struct {
	Location    *time.Location
	MinLead     time.Duration
	MaxAdvance  time.Duration
	OpenHour    int
	CloseHour   int
	MinDuration int
	MaxDuration int
	PendingTTL  time.Duration
	StartWindow time.Duration
}

func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{
		Location:    loc,
		MinLead:     schedule.MinLead,
		MaxAdvance:  30 * 24 * time.Hour,
		OpenHour:    6,
		CloseHour:   23,
		MinDuration: 15,
		MaxDuration: 480,
		PendingTTL:  30 * time.Minute,
		StartWindow: 15 * time.Minute,
	}
}

// ValidateSchedule checks a requested start and duration against the lead
// time, booking horizon and business hours.
func (p Policy) ValidateSchedule(start time.Time, durationMinutes int, now time.Time) error {
	if durationMinutes < p.MinDuration || durationMinutes > p.MaxDuration {
		return validationError("duration must be between %d and %d minutes", p.MinDuration, p.MaxDuration)
	}
	if !start.After(now) {
		return validationError("scheduled start must be in the future")
	}
	if start.Sub(now) < p.MinLead {
		return validationError("bookings need at least %s lead time", p.MinLead)
	}
	if start.Sub(now) > p.MaxAdvance {
		return validationError("bookings can be made at most %d days ahead", int(p.MaxAdvance.Hours()/24))
	}

	localStart := start.In(p.Location)
	y, m, d := localStart.Date()
	open := time.Date(y, m, d, p.OpenHour, 0, 0, 0, p.Location)
	closing := time.Date(y, m, d, p.CloseHour, 0, 0, 0, p.Location)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	if localStart.Before(open) || end.After(closing) {
		return validationError("booking must fit within business hours %02d:00-%02d:00", p.OpenHour, p.CloseHour)
	}
	return nil
}

// expiresAt is the confirmation deadline of a new pending booking. It never
// runs past the scheduled start.
func (p Policy) expiresAt(now, start time.Time) time.Time {
	deadline := now.Add(p.PendingTTL)
	if deadline.After(start) {
		return start
	}
	return deadline
}
