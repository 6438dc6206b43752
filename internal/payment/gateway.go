package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/booking"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/catalog"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/metrics"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrNothingToRefund  = errors.New("no completed charge to refund")
	ErrNoPayoutAccount  = errors.New("master has no payout account")
	ErrRefundOverCharge = errors.New("refund exceeds charged amount")
)

// MasterLookup resolves the payout destination of a master.
type MasterLookup interface {
	GetMaster(ctx context.Context, id string) (*catalog.Master, error)
}

// Gateway implements booking.PaymentGateway on top of a Provider and records
// every attempt in the transaction ledger.
type Gateway struct {
	provider Provider
	ledger   Repository
	masters  MasterLookup
	currency string
	now      func() time.Time
}

var _ booking.PaymentGateway = (*Gateway)(nil)

func NewGateway(provider Provider, ledger Repository, masters MasterLookup, currency string) *Gateway {
	return &Gateway{
		provider: provider,
		ledger:   ledger,
		masters:  masters,
		currency: currency,
		now:      time.Now,
	}
}

func (g *Gateway) Capture(ctx context.Context, b *booking.Booking) error {
	return g.charge(ctx, b, TypePayment, b.TotalAmount, "capture-"+b.ID)
}

func (g *Gateway) AdditionalCharge(ctx context.Context, b *booking.Booking, amount int64) error {
	return g.charge(ctx, b, TypeAdditionalPayment, amount, movementKey("charge", b))
}

func (g *Gateway) Refund(ctx context.Context, b *booking.Booking, amount int64) error {
	return g.refund(ctx, b, TypeRefund, amount, "refund-"+b.ID)
}

func (g *Gateway) PartialRefund(ctx context.Context, b *booking.Booking, amount int64) error {
	return g.refund(ctx, b, TypePartialRefund, amount, movementKey("partial-refund", b))
}

func (g *Gateway) Payout(ctx context.Context, b *booking.Booking, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	master, err := g.masters.GetMaster(ctx, b.MasterID)
	if err != nil {
		return fmt.Errorf("payout lookup: %w", err)
	}
	if master.PayoutAccountID == "" {
		return ErrNoPayoutAccount
	}

	ref, err := g.provider.Transfer(ctx, master.PayoutAccountID, amount, g.currency, "booking-"+b.ID, "payout-"+b.ID)
	return g.record(ctx, b, b.MasterID, TypePayout, amount, ref, "", err)
}

func (g *Gateway) charge(ctx context.Context, b *booking.Booking, t TxType, amount int64, key string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ref, err := g.provider.Charge(ctx, ChargeParams{
		Amount:         amount,
		Currency:       g.currency,
		Description:    b.ServiceName,
		BookingID:      b.ID,
		IdempotencyKey: key,
	})
	return g.record(ctx, b, b.ClientID, t, amount, ref, "", err)
}

// refund returns money against what is left of the booking's charges, newest
// first. Each refund row remembers the charge it came out of.
func (g *Gateway) refund(ctx context.Context, b *booking.Booking, t TxType, amount int64, key string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	charges, err := g.ledger.Charges(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("load charges: %w", err)
	}
	if len(charges) == 0 {
		return ErrNothingToRefund
	}

	remaining := amount
	for i, c := range charges {
		if remaining == 0 {
			break
		}
		if c.Amount <= 0 {
			continue
		}
		part := min(remaining, c.Amount)
		ref, err := g.provider.Refund(ctx, c.ProviderRef, part, fmt.Sprintf("%s-%d", key, i))
		if err := g.record(ctx, b, b.ClientID, t, part, ref, c.ProviderRef, err); err != nil {
			return err
		}
		remaining -= part
	}
	if remaining > 0 {
		return fmt.Errorf("%w: %d left of %d", ErrRefundOverCharge, remaining, amount)
	}
	return nil
}

// record writes the ledger entry for a provider call and returns the call's
// error. A ledger failure after a successful call is returned as well.
func (g *Gateway) record(ctx context.Context, b *booking.Booking, userID string, t TxType, amount int64, ref, chargeRef string, callErr error) error {
	status := StatusCompleted
	if callErr != nil {
		status = StatusFailed
	}
	metrics.RecordPayment(string(t), string(status))

	tx := &Transaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             t,
		Amount:           amount,
		Currency:         g.currency,
		Status:           status,
		RelatedBookingID: b.ID,
		ProviderRef:      ref,
		ChargeRef:        chargeRef,
		CreatedAt:        g.now().UTC(),
	}
	if err := g.ledger.AddTransaction(ctx, tx); err != nil {
		logger.Error("failed to record transaction", "booking_id", b.ID, "type", t, "error", err)
		if callErr == nil {
			return fmt.Errorf("record %s: %w", t, err)
		}
	}

	if callErr != nil {
		return fmt.Errorf("%s for booking %s: %w", t, b.ID, callErr)
	}
	logger.Info("payment recorded", "booking_id", b.ID, "type", t, "amount", amount, "ref", ref)
	return nil
}

// movementKey derives an idempotency key for movements that may happen more
// than once per booking. Each reschedule bumps RescheduledAt.
func movementKey(prefix string, b *booking.Booking) string {
	if b.RescheduledAt == nil {
		return prefix + "-" + b.ID
	}
	return fmt.Sprintf("%s-%s-%d", prefix, b.ID, b.RescheduledAt.UnixNano())
}
