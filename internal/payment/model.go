package payment

import "time"

type TxType string

const (
	TypePayment           TxType = "PAYMENT"
	TypeRefund            TxType = "REFUND"
	TypeAdditionalPayment TxType = "ADDITIONAL_PAYMENT"
	TypePartialRefund     TxType = "PARTIAL_REFUND"
	TypePayout            TxType = "PAYOUT"
)

type TxStatus string

const (
	StatusCompleted TxStatus = "COMPLETED"
	StatusFailed    TxStatus = "FAILED"
)

// Transaction is one money movement recorded against a booking.
type Transaction struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	Type             TxType    `db:"type" json:"type"`
	Amount           int64     `db:"amount" json:"amount"`
	Currency         string    `db:"currency" json:"currency"`
	Status           TxStatus  `db:"status" json:"status"`
	RelatedBookingID string    `db:"related_booking_id" json:"related_booking_id"`
	ProviderRef      string    `db:"provider_ref" json:"provider_ref,omitempty"`
	ChargeRef        string    `db:"charge_ref" json:"charge_ref,omitempty"` // refunded charge's provider ref
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
