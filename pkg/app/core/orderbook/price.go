package orderbook

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TicksPerUnit is the price grid: one tick is 1/TicksPerUnit of a base unit.
// Ledger balances of the base asset are kept in those minor units.
const TicksPerUnit = 10

const tickExponent int32 = -1 // log10(1 / TicksPerUnit)

var (
	// ErrNegativePrice is returned when quantizing a price below zero.
	ErrNegativePrice = errors.New("negative price")
	// ErrPriceOutOfRange is returned when a price has no uint64 tick.
	ErrPriceOutOfRange = errors.New("price out of tick range")
)

var ticksPerUnit = decimal.NewFromInt(TicksPerUnit)

// TickFromPrice maps a decimal price onto the tick grid, truncating anything
// finer than one tick.
func TickFromPrice(price decimal.Decimal) (uint64, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("price %s: %w", price, ErrNegativePrice)
	}
	ticks := price.Mul(ticksPerUnit).Truncate(0).BigInt()
	if !ticks.IsUint64() {
		return 0, fmt.Errorf("price %s: %w", price, ErrPriceOutOfRange)
	}
	return ticks.Uint64(), nil
}

// ParseTick parses a decimal price string such as "12.5" into a tick.
func ParseTick(s string) (uint64, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return TickFromPrice(price)
}

// PriceOfTick is the exact decimal price of a tick.
func PriceOfTick(tick uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(tick), tickExponent)
}
