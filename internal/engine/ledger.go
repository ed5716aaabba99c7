package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/helixlabs/helix/internal/config"
)

// BalanceStore is the slice of persistence the ledger needs.
type BalanceStore interface {
	GetBalance(ctx context.Context, accountID string) (int, error)
	SetBalance(ctx context.Context, accountID string, tokens int) error
}

// Cost prices a completed generation: whitespace-delimited word count
// times the model's multiplier. Whitespace-only text costs zero.
func Cost(text string, profile config.ModelProfile) int {
	return len(strings.Fields(text)) * profile.CostMultiplier
}

// Ledger applies token deductions with a hard floor at zero. Deductions
// for the same account are serialized; different accounts proceed
// independently.
type Ledger struct {
	store BalanceStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[accountID] = lock
	}
	return lock
}

// Deduct subtracts cost from the account balance, clamping at zero, and
// returns the new balance. A balance smaller than the cost goes to zero;
// the shortfall is not an error.
func (l *Ledger) Deduct(ctx context.Context, accountID string, cost int) (int, error) {
	if cost < 0 {
		return 0, fmt.Errorf("ledger: negative cost %d", cost)
	}

	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("ledger: %w", err)
	}

	next := balance - cost
	if next < 0 {
		next = 0
	}
	if err := l.store.SetBalance(ctx, accountID, next); err != nil {
		return 0, fmt.Errorf("ledger: %w", err)
	}

	slog.Debug("tokens deducted", "account", accountID, "cost", cost, "balance", next)
	return next, nil
}

// Balance reads the current balance without modifying it.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int, error) {
	return l.store.GetBalance(ctx, accountID)
}
