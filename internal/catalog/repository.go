package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrMasterNotFound  = errors.New("master not found")
	ErrServiceNotFound = errors.New("service not found")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetMaster(ctx context.Context, id string) (*Master, error) {
	query := `
		SELECT id, name, payout_account_id, created_at
		FROM masters
		WHERE id = $1
	`

	var master Master
	err := r.db.GetContext(ctx, &master, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMasterNotFound
	}
	if err != nil {
		return nil, err
	}

	return &master, nil
}

func (r *repository) GetServiceInfo(ctx context.Context, serviceID, masterID string) (*ServiceInfo, error) {
	query := `
		SELECT id, master_id, name, base_price, duration_minutes, instant_booking, auto_confirm, active
		FROM services
		WHERE id = $1 AND master_id = $2
	`

	var info ServiceInfo
	err := r.db.GetContext(ctx, &info, query, serviceID, masterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}

	return &info, nil
}

func (r *repository) GetMasterAvailability(ctx context.Context, masterID string, day time.Weekday) ([]WorkWindow, error) {
	query := `
		SELECT master_id, day_of_week, start_time, end_time
		FROM master_work_windows
		WHERE master_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`

	var windows []WorkWindow
	if err := r.db.SelectContext(ctx, &windows, query, masterID, int(day)); err != nil {
		return nil, err
	}

	return windows, nil
}
