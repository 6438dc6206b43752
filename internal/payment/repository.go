package payment

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const transactionColumns = `id, user_id, type, amount, currency, status, related_booking_id, provider_ref, charge_ref, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) AddTransaction(ctx context.Context, tx *Transaction) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (:id, :user_id, :type, :amount, :currency, :status, :related_booking_id, :provider_ref, :charge_ref, :created_at)`,
		tx,
	)
	return err
}

// Charges returns the completed charges of a booking that still hold
// refundable money, newest first. Amount is what is left of each charge after
// the completed refunds issued against it. Refunds are issued in that order.
func (r *repository) Charges(ctx context.Context, bookingID string) ([]Transaction, error) {
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT c.id, c.user_id, c.type, c.amount - COALESCE(r.refunded, 0) AS amount,
		       c.currency, c.status, c.related_booking_id, c.provider_ref, c.charge_ref, c.created_at
		FROM transactions c
		LEFT JOIN (
			SELECT charge_ref, SUM(amount) AS refunded
			FROM transactions
			WHERE related_booking_id = $1
			  AND status = $2
			  AND type IN ($5, $6)
			GROUP BY charge_ref
		) r ON r.charge_ref = c.provider_ref
		WHERE c.related_booking_id = $1
		  AND c.status = $2
		  AND c.type IN ($3, $4)
		  AND c.amount > COALESCE(r.refunded, 0)
		ORDER BY c.created_at DESC
	`, bookingID, StatusCompleted, TypePayment, TypeAdditionalPayment, TypeRefund, TypePartialRefund)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repository) GetTransactions(ctx context.Context, bookingID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE related_booking_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, bookingID, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
