package account

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Ledger owns every account of a session, keyed by account id.
// Orders refer to their owner by id and all balance changes go through here,
// so a fill is visible to every other order of the same owner immediately.
// Thread-safe: one RWMutex guards all accounts.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[uint64]*Account
	logger   *zap.Logger
}

// NewLedger creates an empty ledger. A nil logger disables logging.
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		accounts: make(map[uint64]*Account),
		logger:   logger,
	}
}

// Open creates the account if it does not exist yet.
// An existing account keeps its type and balances.
func (l *Ledger) Open(id uint64, typ AccountType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[id]; exists {
		return
	}
	l.accounts[id] = NewAccount(id, typ)
	l.logger.Debug("account_opened", zap.Uint64("account", id), zap.Stringer("type", typ))
}

// getAccountLocked returns the account, creating an Individual one if missing (assumes lock is held)
func (l *Ledger) getAccountLocked(id uint64) *Account {
	acc, exists := l.accounts[id]
	if !exists {
		acc = NewAccount(id, Individual)
		l.accounts[id] = acc
	}
	return acc
}

// Deposit credits an account, opening it as Individual if needed.
func (l *Ledger) Deposit(id uint64, c Currency, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.getAccountLocked(id).Deposit(c, amount)
}

// Withdraw debits an account. Unknown accounts have a zero balance.
func (l *Ledger) Withdraw(id uint64, c Currency, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.withdrawLocked(id, c, amount)
}

func (l *Ledger) withdrawLocked(id uint64, c Currency, amount uint64) error {
	acc, exists := l.accounts[id]
	if !exists {
		if amount == 0 {
			return nil
		}
		return fmt.Errorf("account %d: withdraw %d %s, have 0: %w", id, amount, c, ErrInsufficientFunds)
	}
	return acc.Withdraw(c, amount)
}

// Transfer moves amount from one account to another atomically.
// Both sides are checked first: on failure neither balance changes.
func (l *Ledger) Transfer(from, to uint64, c Currency, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from == to {
		if bal := l.balanceLocked(from, c); bal < amount {
			return fmt.Errorf("account %d: transfer %d %s to itself, have %d: %w", from, amount, c, bal, ErrInsufficientFunds)
		}
		return nil
	}
	if bal := l.balanceLocked(to, c); !canCredit(bal, amount) {
		return fmt.Errorf("account %d: receive %d %s, have %d: %w", to, amount, c, bal, ErrBalanceOverflow)
	}
	if err := l.withdrawLocked(from, c, amount); err != nil {
		return err
	}
	return l.getAccountLocked(to).Deposit(c, amount)
}

// Balance returns the balance of an account, 0 if it does not exist
func (l *Ledger) Balance(id uint64, c Currency) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(id, c)
}

func (l *Ledger) balanceLocked(id uint64, c Currency) uint64 {
	acc, exists := l.accounts[id]
	if !exists {
		return 0
	}
	return acc.Balance(c)
}

// Type returns the type of an account and whether it exists.
func (l *Ledger) Type(id uint64) (AccountType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, exists := l.accounts[id]
	if !exists {
		return Individual, false
	}
	return acc.Type, true
}

// Account returns a detached copy of an account for read-only use.
func (l *Ledger) Account(id uint64) (*Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, exists := l.accounts[id]
	if !exists {
		return nil, false
	}
	return acc.clone(), true
}

// Total sums a currency over every account, escrow accounts included.
// The sum itself is not overflow-checked.
func (l *Ledger) Total(c Currency) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total uint64
	for _, acc := range l.accounts {
		total += acc.Balance(c)
	}
	return total
}

// Count returns the number of open accounts
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}
