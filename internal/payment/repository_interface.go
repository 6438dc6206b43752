package payment

import "context"

type Repository interface {
	AddTransaction(ctx context.Context, tx *Transaction) error
	Charges(ctx context.Context, bookingID string) ([]Transaction, error)
	GetTransactions(ctx context.Context, bookingID string, limit, offset int) ([]Transaction, error)
}
