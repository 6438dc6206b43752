package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/booking"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/metrics"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
)

// Job is a queued notification about a booking event.
type Job struct {
	UserID    string                   `json:"user_id"`
	Type      booking.NotificationType `json:"type"`
	BookingID string                   `json:"booking_id"`
	Status    booking.Status           `json:"status"`
	Start     time.Time                `json:"scheduled_start"`
	Total     int64                    `json:"total_amount"`
	Tries     int                      `json:"tries"`
	Created   time.Time                `json:"created"`
}

// RoutingKey is the topic the job is published under, e.g. "booking.new_booking".
func (j Job) RoutingKey() string {
	return "booking." + strings.ToLower(string(j.Type))
}

// Publisher hands a job to the delivery channel.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Service queues booking notifications in Redis and drains the queue into a
// Publisher at a bounded rate.
type Service struct {
	redis      *redis.Client
	publisher  Publisher
	limiter    *rate.Limiter
	retryDelay time.Duration
	popTimeout time.Duration
	now        func() time.Time
}

var _ booking.Notifier = (*Service)(nil)

func New(rdb *redis.Client, publisher Publisher, publishRPS float64) *Service {
	return &Service{
		redis:      rdb,
		publisher:  publisher,
		limiter:    rate.NewLimiter(rate.Limit(publishRPS), 1),
		retryDelay: 5 * time.Second,
		popTimeout: 2 * time.Second,
		now:        time.Now,
	}
}

func (s *Service) Notify(ctx context.Context, userID string, b *booking.Booking, t booking.NotificationType) error {
	job := Job{
		UserID:    userID,
		Type:      t,
		BookingID: b.ID,
		Status:    b.Status,
		Start:     b.ScheduledStart,
		Total:     b.TotalAmount,
		Created:   s.now(),
	}

	if err := s.push(ctx, job); err != nil {
		logger.Error("failed to queue notification", "user_id", userID, "booking_id", b.ID, "error", err)
		return err
	}

	metrics.RecordNotification(string(t), "queued")
	logger.Debug("notification queued", "type", t, "user_id", userID, "booking_id", b.ID)
	return nil
}

// Start drains the queue until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, s.popTimeout, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error("notification queue pop failed", "error", err)
		}
		return
	}
	metrics.SetNotificationQueueLength(s.QueueLength(ctx))

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad notification payload", "error", err)
		return
	}

	job.Tries++
	if err := s.deliver(ctx, job); err != nil {
		logger.Error("notification delivery failed",
			"user_id", job.UserID, "booking_id", job.BookingID, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			s.retry(ctx, job)
		} else {
			s.saveFailed(ctx, job, err)
		}
		return
	}

	metrics.RecordNotification(string(job.Type), "sent")
	logger.Info("notification sent", "type", job.Type, "user_id", job.UserID, "booking_id", job.BookingID)
}

func (s *Service) deliver(ctx context.Context, job Job) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.publisher.PublishJSON(ctx, job.RoutingKey(), job)
}

func (s *Service) retry(ctx context.Context, job Job) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}
	// The job must survive shutdown, so the push ignores ctx cancellation.
	if err := s.push(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to requeue notification", "booking_id", job.BookingID, "error", err)
		return
	}
	metrics.RecordNotification(string(job.Type), "retried")
}

func (s *Service) saveFailed(ctx context.Context, job Job, cause error) {
	failed := map[string]any{
		"job":   job,
		"error": cause.Error(),
		"time":  s.now(),
	}
	data, err := json.Marshal(failed)
	if err != nil {
		logger.Error("failed to encode failed notification", "error", err)
		return
	}
	if err := s.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data)).Err(); err != nil {
		logger.Error("failed to park notification", "booking_id", job.BookingID, "error", err)
	}
	metrics.RecordNotification(string(job.Type), "failed")
	logger.Error("notification moved to failed queue", "user_id", job.UserID, "booking_id", job.BookingID)
}

func (s *Service) push(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return s.redis.LPush(ctx, queueKey, string(data)).Err()
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}
