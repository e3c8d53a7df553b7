package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sketchbot/internal/domain"
)

// LedgerPG implements domain.Ledger backed by PostgreSQL. Every mutation is a
// single statement or a row-locking transaction, so concurrent requests
// against the same account serialize inside the database rather than in
// application code.
type LedgerPG struct {
	pool            *pgxpool.Pool
	startingCredits int64
}

// NewLedgerPG creates a ledger repository. startingCredits is the balance
// granted to an account on first read.
func NewLedgerPG(pool *pgxpool.Pool, startingCredits int64) *LedgerPG {
	return &LedgerPG{pool: pool, startingCredits: startingCredits}
}

// EnsureSchema creates the credits table when it does not exist yet.
func (r *LedgerPG) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credits (
    user_id    TEXT PRIMARY KEY,
    credits    BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	if err != nil {
		return fmt.Errorf("ensure credits schema: %w", err)
	}
	return nil
}

// GetBalance returns the account balance, creating the row with the starting
// balance on first read. The upsert makes concurrent first reads race-free:
// exactly one insert wins and both callers see the same value.
func (r *LedgerPG) GetBalance(ctx context.Context, userID string) (int64, error) {
	query := `
INSERT INTO credits (user_id, credits)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET credits = credits.credits
RETURNING credits;
`
	var balance int64
	if err := r.pool.QueryRow(ctx, query, userID, r.startingCredits).Scan(&balance); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Debit subtracts amount from the balance, clamping at zero. The arithmetic
// happens inside the statement, never as a read-then-write in Go.
func (r *LedgerPG) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	query := `
INSERT INTO credits (user_id, credits)
VALUES ($1, GREATEST($3 - $2, 0))
ON CONFLICT (user_id) DO UPDATE
SET credits = GREATEST(credits.credits - $2, 0),
    updated_at = NOW()
RETURNING credits;
`
	var balance int64
	if err := r.pool.QueryRow(ctx, query, userID, amount, r.startingCredits).Scan(&balance); err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	return balance, nil
}

// Credit adds amount to the balance.
func (r *LedgerPG) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	query := `
INSERT INTO credits (user_id, credits)
VALUES ($1, $3 + $2)
ON CONFLICT (user_id) DO UPDATE
SET credits = credits.credits + $2,
    updated_at = NOW()
RETURNING credits;
`
	var balance int64
	if err := r.pool.QueryRow(ctx, query, userID, amount, r.startingCredits).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}
	return balance, nil
}

// Transfer moves amount from one account to another in a single transaction.
// Both rows are upserted first, which also takes their row locks; lock order
// follows key order so two opposing transfers cannot deadlock. When the
// source balance is short the transaction rolls back with no mutation.
func (r *LedgerPG) Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("transfer begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := `
INSERT INTO credits (user_id, credits)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET credits = credits.credits
RETURNING credits;
`
	balances := map[string]int64{}
	for _, id := range lockOrder(fromID, toID) {
		var balance int64
		if err := tx.QueryRow(ctx, lockQuery, id, r.startingCredits).Scan(&balance); err != nil {
			return 0, fmt.Errorf("transfer lock %s: %w", id, err)
		}
		balances[id] = balance
	}

	if balances[fromID] < amount {
		return 0, domain.ErrInsufficientCredits
	}
	if fromID == toID {
		// Nothing to move; report the unchanged balance.
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("transfer commit: %w", err)
		}
		return balances[fromID], nil
	}

	var remaining int64
	if err := tx.QueryRow(ctx,
		`UPDATE credits SET credits = credits - $2, updated_at = NOW() WHERE user_id = $1 RETURNING credits;`,
		fromID, amount,
	).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("transfer debit: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE credits SET credits = credits + $2, updated_at = NOW() WHERE user_id = $1;`,
		toID, amount,
	); err != nil {
		return 0, fmt.Errorf("transfer credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("transfer commit: %w", err)
	}
	return remaining, nil
}

func lockOrder(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}
