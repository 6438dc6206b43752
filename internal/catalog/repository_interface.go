package catalog

import (
	"context"
	"time"
)

type Repository interface {
	GetMaster(ctx context.Context, id string) (*Master, error)
	GetServiceInfo(ctx context.Context, serviceID, masterID string) (*ServiceInfo, error)
	GetMasterAvailability(ctx context.Context, masterID string, day time.Weekday) ([]WorkWindow, error)
}
