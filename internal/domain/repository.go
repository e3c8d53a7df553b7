package domain

import "context"

// Ledger defines the atomic credit operations backed by persistent storage.
// Every read-modify-write an implementation performs must be serialized per
// affected account; concurrent debits against one user must not lose updates.
type Ledger interface {
	// GetBalance returns the user's balance, creating the account with the
	// configured starting balance on first read.
	GetBalance(ctx context.Context, userID string) (int64, error)
	// Debit subtracts amount (>= 0) and clamps the result at zero. It
	// returns the balance after the debit.
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	// Credit adds amount (> 0) and returns the balance after the credit.
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	// Transfer moves amount (> 0) between accounts. It mutates neither
	// account and returns ErrInsufficientCredits when the source balance is
	// below amount. It returns the sender's balance after the transfer.
	Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error)
}
