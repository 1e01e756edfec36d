package store

import (
	"context"
	"time"
)

type TransactionRecord struct {
	ID          int64
	UserID      int64
	Type        string
	AmountCents int64
	Description string
	Reference   string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WalletStore keeps user balances and their transaction history. Balance
// changes and the transaction that explains them commit together.
type WalletStore interface {
	// CreatePending inserts a pending transaction without touching balance.
	CreatePending(ctx context.Context, rec TransactionRecord) (TransactionRecord, error)
	// SettleDeposit completes (crediting the user) or fails a pending deposit.
	SettleDeposit(ctx context.Context, reference string, success bool, at time.Time) (TransactionRecord, int64, error)
	// Debit subtracts rec.AmountCents from the user's balance and records rec
	// as completed. Fails with ErrInsufficientBalance when it would go negative.
	Debit(ctx context.Context, rec TransactionRecord) (TransactionRecord, int64, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]TransactionRecord, error)
}
