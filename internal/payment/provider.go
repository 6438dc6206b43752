package payment

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// ChargeParams describes a charge against a client.
type ChargeParams struct {
	Amount         int64
	Currency       string
	Description    string
	BookingID      string
	CustomerID     string
	IdempotencyKey string
}

// Provider is the payment processor the gateway talks to. Every call returns
// the processor's object id.
type Provider interface {
	Charge(ctx context.Context, p ChargeParams) (string, error)
	Refund(ctx context.Context, chargeRef string, amount int64, idempotencyKey string) (string, error)
	Transfer(ctx context.Context, destination string, amount int64, currency, group, idempotencyKey string) (string, error)
}

type stripeProvider struct {
	api *client.API
}

// NewStripeProvider returns a Provider backed by the Stripe API.
func NewStripeProvider(secretKey string) Provider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &stripeProvider{api: sc}
}

func (p *stripeProvider) Charge(ctx context.Context, in ChargeParams) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(in.Amount),
		Currency:      stripe.String(in.Currency),
		Description:   stripe.String(in.Description),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	params.Context = ctx
	params.AddMetadata("booking_id", in.BookingID)
	params.SetIdempotencyKey(in.IdempotencyKey)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (p *stripeProvider) Refund(ctx context.Context, chargeRef string, amount int64, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(chargeRef),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *stripeProvider) Transfer(ctx context.Context, destination string, amount int64, currency, group, idempotencyKey string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(destination),
		TransferGroup: stripe.String(group),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	t, err := p.api.Transfers.New(params)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}
