package repo

import (
	"context"
	"sync"

	"sketchbot/internal/domain"
)

// LedgerMem implements domain.Ledger in process memory. It mirrors the
// semantics of LedgerPG and is intended for tests and local development
// where a database is not available; it does not survive restarts.
type LedgerMem struct {
	mu              sync.Mutex
	balances        map[string]int64
	startingCredits int64
}

// NewLedgerMem creates an in-memory ledger.
func NewLedgerMem(startingCredits int64) *LedgerMem {
	return &LedgerMem{
		balances:        make(map[string]int64),
		startingCredits: startingCredits,
	}
}

// GetBalance returns the balance, creating the account on first read.
func (l *LedgerMem) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensure(userID), nil
}

// Debit subtracts amount, clamping the balance at zero.
func (l *LedgerMem) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.ensure(userID) - amount
	if balance < 0 {
		balance = 0
	}
	l.balances[userID] = balance
	return balance, nil
}

// Credit adds amount to the balance.
func (l *LedgerMem) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.ensure(userID) + amount
	l.balances[userID] = balance
	return balance, nil
}

// Transfer moves amount between accounts, mutating neither when the source
// balance is short.
func (l *LedgerMem) Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.ensure(fromID)
	to := l.ensure(toID)
	if from < amount {
		return 0, domain.ErrInsufficientCredits
	}
	if fromID == toID {
		return from, nil
	}
	l.balances[fromID] = from - amount
	l.balances[toID] = to + amount
	return l.balances[fromID], nil
}

// ensure must be called with the mutex held.
func (l *LedgerMem) ensure(userID string) int64 {
	if balance, ok := l.balances[userID]; ok {
		return balance
	}
	l.balances[userID] = l.startingCredits
	return l.startingCredits
}
