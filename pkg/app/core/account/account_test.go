package account

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestAccountCreation tests basic account creation
func TestAccountCreation(t *testing.T) {
	acc := NewAccount(7, Individual)

	assert.Equal(t, uint64(7), acc.ID)
	assert.Equal(t, Individual, acc.Type)
	assert.Zero(t, acc.Balance(USD))
	assert.Zero(t, acc.Balance(OSMO))
	assert.Empty(t, acc.Balances())
}

func TestAccountDepositWithdraw(t *testing.T) {
	acc := NewAccount(1, Individual)
	acc.Deposit(USD, 1000)
	acc.Deposit(USD, 500)

	require.NoError(t, acc.Withdraw(USD, 1200))
	assert.Equal(t, uint64(300), acc.Balance(USD))

	// Insufficient balance leaves the account untouched
	err := acc.Withdraw(USD, 301)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(300), acc.Balance(USD))

	// Other currencies are independent
	err = acc.Withdraw(OSMO, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, acc.Balance(OSMO))

	require.NoError(t, acc.Withdraw(USD, 300))
	assert.Zero(t, acc.Balance(USD))
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{in: "USD", want: USD},
		{in: "osmo", want: OSMO},
		{in: " Osmo ", want: OSMO},
		{in: "BTC", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), tt.want.String())
		})
	}
}

// TestAccountConservation checks that the balance always equals deposits minus
// successful withdrawals, and that failed withdrawals change nothing.
func TestAccountConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		acc := NewAccount(1, Individual)
		var expected uint64

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			amount := rapid.Uint64Range(0, 10_000).Draw(t, "amount")
			if rapid.Bool().Draw(t, "deposit") {
				acc.Deposit(USD, amount)
				expected += amount
				continue
			}
			err := acc.Withdraw(USD, amount)
			if amount > expected {
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Fatalf("withdraw %d with balance %d: got %v, want ErrInsufficientFunds", amount, expected, err)
				}
			} else {
				if err != nil {
					t.Fatalf("withdraw %d with balance %d: unexpected error %v", amount, expected, err)
				}
				expected -= amount
			}
			if acc.Balance(USD) != expected {
				t.Fatalf("balance = %d, want %d", acc.Balance(USD), expected)
			}
		}
	})
}

func TestLedgerDepositWithdraw(t *testing.T) {
	l := NewLedger(nil)

	l.Deposit(1, USD, 100_000)
	assert.Equal(t, uint64(100_000), l.Balance(1, USD))
	assert.Equal(t, 1, l.Count())

	require.NoError(t, l.Withdraw(1, USD, 40_000))
	assert.Equal(t, uint64(60_000), l.Balance(1, USD))

	err := l.Withdraw(1, USD, 60_001)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(60_000), l.Balance(1, USD))

	// Unknown accounts read as empty and are not created by reads or failed withdrawals
	assert.Zero(t, l.Balance(2, USD))
	require.ErrorIs(t, l.Withdraw(2, USD, 1), ErrInsufficientFunds)
	require.NoError(t, l.Withdraw(2, USD, 0))
	assert.Equal(t, 1, l.Count())
}

func TestLedgerOpenIsIdempotent(t *testing.T) {
	l := NewLedger(nil)
	l.Open(9, Orderbook)
	l.Deposit(9, OSMO, 50)
	l.Open(9, Individual)

	acc, ok := l.Account(9)
	require.True(t, ok)
	assert.Equal(t, Orderbook, acc.Type)
	assert.Equal(t, uint64(50), acc.Balance(OSMO))

	// The returned account is a copy
	acc.Deposit(OSMO, 1000)
	assert.Equal(t, uint64(50), l.Balance(9, OSMO))

	_, ok = l.Account(10)
	assert.False(t, ok)
}

func TestLedgerTransfer(t *testing.T) {
	l := NewLedger(nil)
	l.Deposit(1, USD, 500)

	require.NoError(t, l.Transfer(1, 2, USD, 200))
	assert.Equal(t, uint64(300), l.Balance(1, USD))
	assert.Equal(t, uint64(200), l.Balance(2, USD))

	err := l.Transfer(1, 2, USD, 301)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(300), l.Balance(1, USD))
	assert.Equal(t, uint64(200), l.Balance(2, USD))
	assert.Equal(t, uint64(500), l.Total(USD))
}

func TestAccountDepositOverflow(t *testing.T) {
	acc := NewAccount(1, Individual)
	require.NoError(t, acc.Deposit(OSMO, math.MaxUint64))

	err := acc.Deposit(OSMO, 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, uint64(math.MaxUint64), acc.Balance(OSMO))

	// other currencies are independent
	require.NoError(t, acc.Deposit(USD, 1))
}

func TestLedgerTransferOverflow(t *testing.T) {
	l := NewLedger(nil)
	require.NoError(t, l.Deposit(1, OSMO, 1))
	require.NoError(t, l.Deposit(2, OSMO, math.MaxUint64))
	require.ErrorIs(t, l.Deposit(2, OSMO, 1), ErrBalanceOverflow)

	// the receiving side is checked before the sender is debited
	err := l.Transfer(1, 2, OSMO, 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, uint64(1), l.Balance(1, OSMO))
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(2, OSMO))

	// moving a full balance onto itself is a no-op, not an overflow
	require.NoError(t, l.Transfer(2, 2, OSMO, math.MaxUint64))
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(2, OSMO))
	require.ErrorIs(t, l.Transfer(1, 1, OSMO, 2), ErrInsufficientFunds)
}

func TestLedgerType(t *testing.T) {
	l := NewLedger(nil)
	l.Open(7, Orderbook)
	l.Deposit(8, USD, 1)

	typ, ok := l.Type(7)
	require.True(t, ok)
	assert.Equal(t, Orderbook, typ)

	typ, ok = l.Type(8)
	require.True(t, ok)
	assert.Equal(t, Individual, typ)

	_, ok = l.Type(9)
	assert.False(t, ok)
	assert.Equal(t, 2, l.Count())
}

func TestLedgerConcurrentTransfers(t *testing.T) {
	l := NewLedger(nil)
	const accounts = 8
	for id := uint64(0); id < accounts; id++ {
		l.Deposit(id, USD, 1000)
	}

	var wg sync.WaitGroup
	for w := 0; w < accounts; w++ {
		wg.Add(1)
		go func(from uint64) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				to := (from + uint64(i)) % accounts
				_ = l.Transfer(from, to, USD, uint64(i%7))
			}
		}(uint64(w))
	}
	wg.Wait()

	assert.Equal(t, uint64(accounts*1000), l.Total(USD))
}
