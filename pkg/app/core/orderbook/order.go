package orderbook

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
)

var (
	// ErrInvalidOrderType means a non-limit order reached a path that only accepts
	// limit orders. It indicates a caller bug rather than a user-facing condition.
	ErrInvalidOrderType = errors.New("invalid order type")
	// ErrNotionalOverflow means quantity x price does not fit in 64 bits.
	ErrNotionalOverflow = errors.New("notional overflows uint64")
	// ErrBookMismatch means an order addressed to another book was submitted.
	ErrBookMismatch = errors.New("order belongs to a different book")
	// ErrCancelNotSupported is returned by CancelOrder.
	ErrCancelNotSupported = errors.New("order cancellation is not supported")
	// ErrEscrowOwner means an order was submitted on behalf of a book's escrow
	// account. Escrow balances back resting orders and are never traded.
	ErrEscrowOwner = errors.New("escrow accounts cannot place orders")
)

type OrderType int8

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

// Direction is the side of an order: Bid buys the quote asset, Ask sells it.
type Direction int8

const (
	Bid Direction = iota
	Ask
)

func (d Direction) String() string {
	switch d {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Pair names the two assets of a book.
// Quote is the traded asset (quantities are in Quote units), Base prices it:
// a tick is one Base minor unit per Quote unit, so a fill of q at tick t
// costs exactly q*t of Base.
type Pair struct {
	Quote account.Currency
	Base  account.Currency
}

// DefaultPair is the OSMO/USD instrument every book trades unless told otherwise.
var DefaultPair = Pair{Quote: account.OSMO, Base: account.USD}

// Ledger is the subset of account.Ledger the matching engine settles against.
type Ledger interface {
	Open(id uint64, typ account.AccountType)
	Deposit(id uint64, c account.Currency, amount uint64) error
	Withdraw(id uint64, c account.Currency, amount uint64) error
	Transfer(from, to uint64, c account.Currency, amount uint64) error
	Balance(id uint64, c account.Currency) uint64
	Type(id uint64) (account.AccountType, bool)
}

var _ Ledger = (*account.Ledger)(nil)

// Settlement is what an order needs to move assets for a fill: the ledger,
// the book's asset pair and the book's escrow account. It also records every
// resting order consumed through it so the book can report fills.
type Settlement struct {
	Ledger Ledger
	Pair   Pair
	Escrow uint64

	makers []makerFill
}

type makerFill struct {
	orderID  uint64
	owner    uint64
	tick     uint64
	quantity uint64
}

func (s *Settlement) record(o *Order, quantity uint64) {
	s.makers = append(s.makers, makerFill{orderID: o.ID, owner: o.Owner, tick: o.TickID, quantity: quantity})
}

func (s *Settlement) drain() []makerFill {
	out := s.makers
	s.makers = nil
	return out
}

// Order is a trade request. Owner is an account id in the book's ledger; the
// order never holds balances itself.
type Order struct {
	ID        uint64
	TickID    uint64 // limit price in ticks, ignored for market orders
	BookID    uint64
	Owner     uint64
	Type      OrderType
	Direction Direction

	quantity uint64 // remaining, only ever decreases through fills
}

// NewOrder creates an order for quantity units of the book's quote asset.
func NewOrder(id, tickID, bookID, owner uint64, typ OrderType, dir Direction, quantity uint64) *Order {
	return &Order{
		ID:        id,
		TickID:    tickID,
		BookID:    bookID,
		Owner:     owner,
		Type:      typ,
		Direction: dir,
		quantity:  quantity,
	}
}

// Quantity returns the unfilled quantity
func (o *Order) Quantity() uint64 {
	return o.quantity
}

// SetQuantity resizes the order. Only used to turn a partially crossed order
// into its resting remainder.
func (o *Order) SetQuantity(quantity uint64) {
	o.quantity = quantity
}

// FillOrder consumes up to fillQuantity from the order and returns the part of
// fillQuantity it could not absorb. The consumed part settles at the order's own
// tick: the owner is paid out of the book's escrow account, where the taker's
// collateral already sits, and the order's own collateral stays there for the
// taker to collect. On error the order is unchanged.
func (o *Order) FillOrder(s *Settlement, fillQuantity uint64) (uint64, error) {
	var remainder uint64
	filled := fillQuantity
	if o.quantity <= fillQuantity {
		remainder = fillQuantity - o.quantity
		filled = o.quantity
	}
	if filled == 0 {
		return remainder, nil
	}

	if err := o.DistributeFilledAssets(s, filled, o.TickID); err != nil {
		return fillQuantity, err
	}
	o.quantity -= filled
	s.record(o, filled)
	return remainder, nil
}

// DistributeFilledAssets pays the owner what the fill bought out of the book's
// escrow account: a Bid receives amountFilled of the quote asset, an Ask
// receives amountFilled*pricePerUnit of the base asset.
func (o *Order) DistributeFilledAssets(s *Settlement, amountFilled, pricePerUnit uint64) error {
	c, amount, err := o.receiveLeg(s.Pair, amountFilled, pricePerUnit)
	if err != nil {
		return err
	}
	if err := s.Ledger.Transfer(s.Escrow, o.Owner, c, amount); err != nil {
		return fmt.Errorf("order %d: pay out %d %s from escrow: %w", o.ID, amount, c, err)
	}
	return nil
}

// WithdrawDepositedAssets debits the owner for the collateral backing a fill
// (a Bid pays amountFilled*pricePerUnit of the base asset, an Ask pays
// amountFilled of the quote asset) and parks it in the book's escrow account.
func (o *Order) WithdrawDepositedAssets(s *Settlement, amountFilled, pricePerUnit uint64) error {
	c, amount, err := o.payLeg(s.Pair, amountFilled, pricePerUnit)
	if err != nil {
		return err
	}
	if err := s.Ledger.Transfer(o.Owner, s.Escrow, c, amount); err != nil {
		return fmt.Errorf("order %d: escrow %d %s: %w", o.ID, amount, c, err)
	}
	return nil
}

// payAsset is the currency the order spends.
func (o *Order) payAsset(p Pair) account.Currency {
	if o.Direction == Bid {
		return p.Base
	}
	return p.Quote
}

// receiveAsset is the currency the order buys.
func (o *Order) receiveAsset(p Pair) account.Currency {
	if o.Direction == Bid {
		return p.Quote
	}
	return p.Base
}

// payLeg is what the order gives up for amount units at price.
func (o *Order) payLeg(p Pair, amount, price uint64) (account.Currency, uint64, error) {
	if o.Direction == Bid {
		n, err := notional(amount, price)
		return p.Base, n, err
	}
	return p.Quote, amount, nil
}

// receiveLeg is what the order gets for amount units at price.
func (o *Order) receiveLeg(p Pair, amount, price uint64) (account.Currency, uint64, error) {
	if o.Direction == Bid {
		return p.Quote, amount, nil
	}
	n, err := notional(amount, price)
	return p.Base, n, err
}

func notional(amount, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(amount, price)
	if hi != 0 {
		return 0, fmt.Errorf("%d x %d: %w", amount, price, ErrNotionalOverflow)
	}
	return lo, nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ErrNotionalOverflow)
	}
	return sum, nil
}
