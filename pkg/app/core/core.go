// Package core re-exports the ledger and matching engine under one import path
package core

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
	"github.com/uhyunpark/tickbook/pkg/app/core/orderbook"
)

// From orderbook package
type (
	Orderbook  = orderbook.Orderbook
	Order      = orderbook.Order
	OrderType  = orderbook.OrderType
	Direction  = orderbook.Direction
	Tick       = orderbook.Tick
	Fill       = orderbook.Fill
	PriceLevel = orderbook.PriceLevel
	Cursor     = orderbook.Cursor
	Pair       = orderbook.Pair
	Option     = orderbook.Option
)

const (
	Market = orderbook.Market
	Limit  = orderbook.Limit
	Bid    = orderbook.Bid
	Ask    = orderbook.Ask
)

func NewOrderbook(bookID uint64, ledger *Ledger, opts ...Option) *Orderbook {
	return orderbook.New(bookID, ledger, opts...)
}

func NewOrder(id, tickID, bookID, owner uint64, typ OrderType, dir Direction, quantity uint64) *Order {
	return orderbook.NewOrder(id, tickID, bookID, owner, typ, dir, quantity)
}

func TickFromPrice(price decimal.Decimal) (uint64, error) {
	return orderbook.TickFromPrice(price)
}

func ParseTick(s string) (uint64, error) {
	return orderbook.ParseTick(s)
}

func PriceOfTick(tick uint64) decimal.Decimal {
	return orderbook.PriceOfTick(tick)
}

// From account package
type (
	Account     = account.Account
	AccountType = account.AccountType
	Ledger      = account.Ledger
	Currency    = account.Currency
)

const (
	USD  = account.USD
	OSMO = account.OSMO
)

func NewAccount(id uint64, typ AccountType) *Account {
	return account.NewAccount(id, typ)
}

func NewLedger() *Ledger {
	return account.NewLedger(nil)
}
