package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// exclusion_violation, raised by the bookings_no_overlap constraint.
const pqExclusionViolation = "23P01"

const bookingColumns = `id, client_id, master_id, service_id, service_name,
	scheduled_start, scheduled_end, duration_minutes,
	base_amount, urgent_fee, platform_fee, total_amount, cancellation_fee, refund_amount,
	urgent_booking, auto_confirmed, status, notes,
	created_at, updated_at, confirmed_at, started_at, completed_at, cancelled_at,
	rescheduled_at, expires_at, expired_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBooking(ctx context.Context, b *Booking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockMaster(ctx, tx, b.MasterID); err != nil {
		return err
	}

	if b.Status.IsActive() {
		if err := ensureFree(ctx, tx, b.MasterID, b.ScheduledStart, b.ScheduledEnd, b.ID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :client_id, :master_id, :service_id, :service_name,
			:scheduled_start, :scheduled_end, :duration_minutes,
			:base_amount, :urgent_fee, :platform_fee, :total_amount, :cancellation_fee, :refund_amount,
			:urgent_booking, :auto_confirmed, :status, :notes,
			:created_at, :updated_at, :confirmed_at, :started_at, :completed_at, :cancelled_at,
			:rescheduled_at, :expires_at, :expired_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		return mapConstraintError(err)
	}

	return mapConstraintError(tx.Commit())
}

func (r *repository) GetBooking(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var b Booking
	err := r.db.GetContext(ctx, &b, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) UpdateBooking(ctx context.Context, id string, patch Patch) (*Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current Booking
	err = tx.GetContext(ctx, &current, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if current.Status != patch.From {
		return nil, ErrStaleState
	}

	next := patch.Apply(&current)

	if patch.ChangesOccupancy() && next.Status.IsActive() {
		if err := lockMaster(ctx, tx, next.MasterID); err != nil {
			return nil, err
		}
		if err := ensureFree(ctx, tx, next.MasterID, next.ScheduledStart, next.ScheduledEnd, next.ID); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE bookings SET
			status = :status,
			scheduled_start = :scheduled_start,
			scheduled_end = :scheduled_end,
			duration_minutes = :duration_minutes,
			urgent_booking = :urgent_booking,
			urgent_fee = :urgent_fee,
			platform_fee = :platform_fee,
			total_amount = :total_amount,
			cancellation_fee = :cancellation_fee,
			refund_amount = :refund_amount,
			confirmed_at = :confirmed_at,
			started_at = :started_at,
			completed_at = :completed_at,
			cancelled_at = :cancelled_at,
			rescheduled_at = :rescheduled_at,
			expires_at = :expires_at,
			expired_at = :expired_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	if _, err := tx.NamedExecContext(ctx, query, next); err != nil {
		return nil, mapConstraintError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapConstraintError(err)
	}

	return next, nil
}

func (r *repository) QueryMasterBookingsInRange(ctx context.Context, masterID string, start, end time.Time, excludeID string) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE master_id = $1
		  AND status IN ('CONFIRMED', 'IN_PROGRESS')
		  AND scheduled_start < $3
		  AND scheduled_end > $2
	`
	args := []interface{}{masterID, start, end}
	if excludeID != "" {
		query += ` AND id <> $4`
		args = append(args, excludeID)
	}
	query += ` ORDER BY scheduled_start`

	bookings := []Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) ListBookings(ctx context.Context, filter ListFilter) ([]Booking, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	switch {
	case filter.ClientID != "" && filter.MasterID != "":
		args = append(args, filter.ClientID, filter.MasterID)
		where = append(where, fmt.Sprintf("(client_id = $%d OR master_id = $%d)", len(args)-1, len(args)))
	case filter.ClientID != "":
		add("client_id = $%d", filter.ClientID)
	case filter.MasterID != "":
		add("master_id = $%d", filter.MasterID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("scheduled_start >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("scheduled_start < $%d", *filter.To)
	}
	if filter.Search != "" {
		add("service_name ILIKE $%d", "%"+filter.Search+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+clause, args...); err != nil {
		return nil, 0, err
	}

	limit, offset := filter.limitOffset()
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY scheduled_start DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, clause, len(args)+1, len(args)+2)

	bookings := []Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

// lockMaster serializes writers of one master's calendar until the
// transaction ends.
func lockMaster(ctx context.Context, tx *sqlx.Tx, masterID string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, masterID)
	return err
}

func ensureFree(ctx context.Context, tx *sqlx.Tx, masterID string, start, end time.Time, excludeID string) error {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE master_id = $1
			  AND status IN ('CONFIRMED', 'IN_PROGRESS')
			  AND scheduled_start < $3
			  AND scheduled_end > $2
			  AND id <> $4
		)
	`

	var taken bool
	if err := tx.GetContext(ctx, &taken, query, masterID, start, end, excludeID); err != nil {
		return err
	}
	if taken {
		return ErrSlotUnavailable
	}
	return nil
}

func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqExclusionViolation {
		return ErrSlotUnavailable
	}
	return err
}
