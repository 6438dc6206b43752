package booking

import (
	"time"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/schedule"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusExpired    Status = "EXPIRED"
)

// activeStatuses occupy a master's calendar.
var activeStatuses = []Status{StatusConfirmed, StatusInProgress}

func (s Status) IsActive() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type Booking struct {
	ID          string `db:"id" json:"id"`
	ClientID    string `db:"client_id" json:"client_id"`
	MasterID    string `db:"master_id" json:"master_id"`
	ServiceID   string `db:"service_id" json:"service_id"`
	ServiceName string `db:"service_name" json:"service_name"`

	ScheduledStart  time.Time `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd    time.Time `db:"scheduled_end" json:"scheduled_end"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`

	BaseAmount      int64  `db:"base_amount" json:"base_amount"`
	UrgentFee       int64  `db:"urgent_fee" json:"urgent_fee"`
	PlatformFee     int64  `db:"platform_fee" json:"platform_fee"`
	TotalAmount     int64  `db:"total_amount" json:"total_amount"`
	CancellationFee *int64 `db:"cancellation_fee" json:"cancellation_fee,omitempty"`
	RefundAmount    *int64 `db:"refund_amount" json:"refund_amount,omitempty"`

	UrgentBooking bool   `db:"urgent_booking" json:"urgent_booking"`
	AutoConfirmed bool   `db:"auto_confirmed" json:"auto_confirmed"`
	Status        Status `db:"status" json:"status"`
	Notes         string `db:"notes" json:"notes,omitempty"`

	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	ConfirmedAt   *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RescheduledAt *time.Time `db:"rescheduled_at" json:"rescheduled_at,omitempty"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ExpiredAt     *time.Time `db:"expired_at" json:"expired_at,omitempty"`
}

func (b *Booking) Interval() schedule.Interval {
	return schedule.Interval{ID: b.ID, Start: b.ScheduledStart, End: b.ScheduledEnd}
}

// IsStale reports whether a pending booking has outlived its confirmation deadline.
func (b *Booking) IsStale(now time.Time) bool {
	return b.Status == StatusPending && b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// Participant reports whether userID is the client or the master of the booking.
func (b *Booking) Participant(userID string) bool {
	return userID != "" && (userID == b.ClientID || userID == b.MasterID)
}

func intervals(bookings []Booking) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].Interval())
	}
	return out
}

type NotificationType string

const (
	NotifyNewBooking  NotificationType = "NEW_BOOKING"
	NotifyConfirmed   NotificationType = "CONFIRMED"
	NotifyCancelled   NotificationType = "CANCELLED"
	NotifyRescheduled NotificationType = "RESCHEDULED"
	NotifyStarted     NotificationType = "STARTED"
	NotifyCompleted   NotificationType = "COMPLETED"
)

type CreateRequest struct {
	ServiceID       string    `json:"service_id" binding:"required"`
	MasterID        string    `json:"master_id" binding:"required"`
	ScheduledStart  time.Time `json:"scheduled_start" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=15,max=480"`
	ClientID        string    `json:"client_id,omitempty"`
	Notes           string    `json:"notes,omitempty" binding:"max=500"`
}

type ManageRequest struct {
	Action          Action     `json:"action" binding:"required,oneof=confirm cancel reschedule start complete"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty" binding:"omitempty,min=15,max=480"`
}

type ListFilter struct {
	ClientID string
	MasterID string
	Status   Status
	From     *time.Time
	To       *time.Time
	Search   string
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalize fills in paging defaults.
func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

func (f ListFilter) limitOffset() (int, int) {
	f.normalize()
	return f.PageSize, (f.Page - 1) * f.PageSize
}

type Page struct {
	Items    []Booking `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// Result is a booking after a lifecycle operation together with the
// secondary effects that failed along the way.
type Result struct {
	Booking  *Booking `json:"booking"`
	Warnings []string `json:"warnings,omitempty"`
}
