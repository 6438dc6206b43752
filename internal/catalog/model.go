package catalog

import (
	"fmt"
	"time"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

type Master struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	PayoutAccountID string    `db:"payout_account_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ServiceInfo is a service a master offers, with the settings the booking
// engine needs to price and admit a request.
type ServiceInfo struct {
	ID              string `db:"id" json:"id"`
	MasterID        string `db:"master_id" json:"master_id"`
	Name            string `db:"name" json:"name"`
	BasePrice       int64  `db:"base_price" json:"base_price"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`
	InstantBooking  bool   `db:"instant_booking" json:"instant_booking"`
	AutoConfirm     bool   `db:"auto_confirm" json:"auto_confirm"`
	Active          bool   `db:"active" json:"active"`
}

// Bookable reports whether the service accepts instant bookings.
func (s *ServiceInfo) Bookable() bool {
	return s.Active && s.InstantBooking
}

// WorkWindow is a master's working window on a weekday, in local wall-clock
// "HH:MM" form. End may be "24:00".
type WorkWindow struct {
	MasterID  string       `db:"master_id" json:"master_id"`
	DayOfWeek time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
}

func (w WorkWindow) Window() (schedule.Window, error) {
	start, err := parseClock(w.StartTime)
	if err != nil {
		return schedule.Window{}, err
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return schedule.Window{}, err
	}
	if end <= start {
		return schedule.Window{}, fmt.Errorf("work window %s-%s: end must be after start", w.StartTime, w.EndTime)
	}
	return schedule.Window{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
