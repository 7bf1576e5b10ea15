package account

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrInsufficientFunds is returned when a withdrawal exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceOverflow is returned when a credit would take a balance past the
	// largest uint64. Balances never wrap.
	ErrBalanceOverflow = errors.New("balance overflows uint64")
)

// AccountType separates participant accounts from accounts owned by a book.
type AccountType int8

const (
	Individual AccountType = iota
	Orderbook              // escrow account held by an order book
)

func (t AccountType) String() string {
	switch t {
	case Individual:
		return "individual"
	case Orderbook:
		return "orderbook"
	default:
		return "unknown"
	}
}

// Account holds per-currency balances for one participant.
// Balances are unsigned: an account can never go negative.
//
// Account is not safe for concurrent use on its own; the Ledger serializes
// access to the accounts it owns.
type Account struct {
	ID   uint64
	Type AccountType

	balances map[Currency]uint64
}

// NewAccount creates an account with zero balance in every currency
func NewAccount(id uint64, typ AccountType) *Account {
	return &Account{
		ID:       id,
		Type:     typ,
		balances: make(map[Currency]uint64),
	}
}

// Deposit credits amount of currency, or leaves the balance untouched and
// returns ErrBalanceOverflow if the result does not fit.
func (a *Account) Deposit(c Currency, amount uint64) error {
	bal := a.balances[c]
	if !canCredit(bal, amount) {
		return fmt.Errorf("account %d: deposit %d %s, have %d: %w", a.ID, amount, c, bal, ErrBalanceOverflow)
	}
	a.balances[c] = bal + amount
	return nil
}

// Withdraw debits amount of currency, or leaves the balance untouched and
// returns ErrInsufficientFunds if it cannot be covered.
func (a *Account) Withdraw(c Currency, amount uint64) error {
	bal := a.balances[c]
	if bal < amount {
		return fmt.Errorf("account %d: withdraw %d %s, have %d: %w", a.ID, amount, c, bal, ErrInsufficientFunds)
	}
	a.balances[c] = bal - amount
	return nil
}

// Balance returns the current balance, 0 for currencies never touched
func (a *Account) Balance(c Currency) uint64 {
	return a.balances[c]
}

// Balances returns a copy of all non-zero balances.
func (a *Account) Balances() map[Currency]uint64 {
	out := make(map[Currency]uint64, len(a.balances))
	for c, v := range a.balances {
		if v != 0 {
			out[c] = v
		}
	}
	return out
}

func canCredit(balance, amount uint64) bool {
	_, carry := bits.Add64(balance, amount, 0)
	return carry == 0
}

func (a *Account) clone() *Account {
	cp := NewAccount(a.ID, a.Type)
	for c, v := range a.balances {
		cp.balances[c] = v
	}
	return cp
}
