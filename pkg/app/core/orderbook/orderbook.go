package orderbook

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/tickbook/pkg/app/core/account"
	"github.com/uhyunpark/tickbook/pkg/util"
)

// Fill is one resting order consumed by an incoming order.
type Fill struct {
	BookID       uint64
	TakerOrderID uint64
	MakerOrderID uint64
	TakerAccount uint64
	MakerAccount uint64
	Direction    Direction // taker side
	Tick         uint64
	Quantity     uint64
	Timestamp    time.Time
}

// Price is the fill price as a decimal.
func (f Fill) Price() decimal.Decimal {
	return PriceOfTick(f.Tick)
}

// PriceLevel is a snapshot of one tick for depth display.
type PriceLevel struct {
	Tick     uint64
	Side     Direction
	Quantity uint64 // total resting qty at this tick
	Orders   int
}

// Cursor is the best price on one side of the book, or nothing when that side
// is empty.
type Cursor struct {
	tick uint64
	ok   bool
}

func at(tick uint64) Cursor { return Cursor{tick: tick, ok: true} }

// Tick returns the cursor's tick and whether it points anywhere.
func (c Cursor) Tick() (uint64, bool) { return c.tick, c.ok }

func (c Cursor) Empty() bool { return !c.ok }

func (c Cursor) String() string {
	if !c.ok {
		return "none"
	}
	return fmt.Sprintf("%d", c.tick)
}

// Bound is an exclusive limit on how far a sweep may walk. The zero value is
// unbounded.
type Bound struct {
	tick uint64
	set  bool
}

func Unbounded() Bound { return Bound{} }

func BoundAt(tick uint64) Bound { return Bound{tick: tick, set: true} }

// stops reports whether a taker on side must not touch tick.
func (b Bound) stops(taker Direction, tick uint64) bool {
	if !b.set {
		return false
	}
	if taker == Bid {
		return tick >= b.tick
	}
	return tick <= b.tick
}

// EscrowAccountID is the ledger account a book keeps collateral in.
// Escrow ids are taken from the top of the id space.
func EscrowAccountID(bookID uint64) uint64 {
	return math.MaxUint64 - bookID
}

// Orderbook matches orders for a single instrument with price-time priority.
//
// Every resting order's collateral sits in the book's escrow account from the
// moment it rests until it fills, so the sum of every account's balance in
// each currency never changes through matching.
//
// Thread-safe: HandleOrder and all accessors serialize on one mutex.
type Orderbook struct {
	mu sync.Mutex

	id     uint64
	pair   Pair
	escrow uint64
	ledger Ledger

	ticks     *tickIndex
	bestBid   Cursor
	bestAsk   Cursor
	lastTrade Cursor

	logger  *zap.Logger
	metrics *Metrics
	clock   util.Clock
}

// Option configures an Orderbook at construction.
type Option func(*Orderbook)

// WithPair sets the traded pair, DefaultPair otherwise.
func WithPair(p Pair) Option {
	return func(b *Orderbook) { b.pair = p }
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Orderbook) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics enables metrics. A nil *Metrics records nothing.
func WithMetrics(m *Metrics) Option {
	return func(b *Orderbook) { b.metrics = m }
}

// WithClock sets the clock fills are stamped with.
func WithClock(c util.Clock) Option {
	return func(b *Orderbook) {
		if c != nil {
			b.clock = c
		}
	}
}

// New creates an empty book settling against ledger and opens its escrow account.
func New(bookID uint64, ledger Ledger, opts ...Option) *Orderbook {
	b := &Orderbook{
		id:     bookID,
		pair:   DefaultPair,
		escrow: EscrowAccountID(bookID),
		ledger: ledger,
		ticks:  newTickIndex(),
		logger: zap.NewNop(),
		clock:  util.RealClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ledger.Open(b.escrow, account.Orderbook)
	b.logger = b.logger.With(zap.Uint64("book", bookID))
	return b
}

// HandleOrder runs an order against the book and returns the resting orders it
// consumed, oldest first.
//
// Market orders sweep the opposite side without a price limit; whatever the
// side cannot absorb is dropped and left in o.Quantity(). Limit orders that
// cross sweep up to and including their own price and rest the remainder;
// limit orders that do not cross rest in full.
//
// The owner's collateral for everything the order will fill or rest is moved
// to escrow before the book changes. If it cannot be covered, or a fill would
// overflow a receiving balance, the call returns an error wrapping
// account.ErrInsufficientFunds or account.ErrBalanceOverflow and nothing
// changes. Orders owned by an escrow account are rejected with ErrEscrowOwner.
//
// An error from the ledger itself part way through a sweep returns the fills
// that did settle together with the error; the unused collateral is returned
// and o.Quantity() is what was left unfilled.
func (b *Orderbook) HandleOrder(o *Order) ([]Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fills, err := b.handleOrderLocked(o)
	b.metrics.observeOrder(o, err)
	b.metrics.setPriceLevels(b.ticks.Len())
	if err != nil {
		b.logger.Info("order_rejected",
			zap.Uint64("order", o.ID),
			zap.Uint64("owner", o.Owner),
			zap.Stringer("type", o.Type),
			zap.Stringer("direction", o.Direction),
			zap.Error(err))
	}
	return fills, err
}

func (b *Orderbook) handleOrderLocked(o *Order) ([]Fill, error) {
	if o.BookID != b.id {
		return nil, fmt.Errorf("order %d for book %d, this is book %d: %w", o.ID, o.BookID, b.id, ErrBookMismatch)
	}
	if typ, _ := b.ledger.Type(o.Owner); o.Owner == b.escrow || typ == account.Orderbook {
		return nil, fmt.Errorf("order %d: owner %d: %w", o.ID, o.Owner, ErrEscrowOwner)
	}
	if o.Direction != Bid && o.Direction != Ask {
		return nil, fmt.Errorf("order %d: direction %d: %w", o.ID, o.Direction, ErrInvalidOrderType)
	}
	if o.quantity == 0 {
		return nil, nil
	}

	switch o.Type {
	case Market:
		return b.runMarketOrder(o)
	case Limit:
		return b.runPartialOrFullLimit(o)
	default:
		return nil, fmt.Errorf("order %d: type %d: %w", o.ID, o.Type, ErrInvalidOrderType)
	}
}

func (b *Orderbook) runMarketOrder(o *Order) ([]Fill, error) {
	var (
		remaining uint64
		fills     []Fill
		err       error
	)
	if o.Direction == Bid {
		remaining, fills, err = b.runMarketBid(o, Unbounded(), o.quantity)
	} else {
		remaining, fills, err = b.runMarketAsk(o, Unbounded(), o.quantity)
	}
	o.SetQuantity(remaining)
	return fills, err
}

func (b *Orderbook) runPartialOrFullLimit(o *Order) ([]Fill, error) {
	if !b.crosses(o) {
		return nil, b.runPlaceLimit(o)
	}

	remaining, fills, err := b.sweep(o, limitBound(o), o.quantity, true)
	o.SetQuantity(remaining)
	if err != nil {
		return fills, err
	}
	if remaining == 0 {
		return fills, nil
	}
	// collateral for the remainder was escrowed with the sweep
	return fills, b.restLimit(o)
}

// crosses reports whether a limit order can trade against the opposite side.
func (b *Orderbook) crosses(o *Order) bool {
	if o.Direction == Bid {
		ask, ok := b.bestAsk.Tick()
		return ok && o.TickID >= ask
	}
	bid, ok := b.bestBid.Tick()
	return ok && o.TickID <= bid
}

// limitBound is the exclusive sweep bound that lets a limit order trade at its
// own price but not beyond it.
func limitBound(o *Order) Bound {
	if o.Direction == Bid {
		if o.TickID == math.MaxUint64 {
			return Unbounded()
		}
		return BoundAt(o.TickID + 1)
	}
	if o.TickID == 0 {
		return Unbounded()
	}
	return BoundAt(o.TickID - 1)
}

// runMarketBid buys up to quantity from the ask side, lowest tick first,
// never touching ticks at or above end. It returns the unfilled quantity.
func (b *Orderbook) runMarketBid(o *Order, end Bound, quantity uint64) (uint64, []Fill, error) {
	if o.Direction != Bid {
		return quantity, nil, fmt.Errorf("order %d is not a bid: %w", o.ID, ErrInvalidOrderType)
	}
	return b.sweep(o, end, quantity, false)
}

// runMarketAsk sells up to quantity into the bid side, highest tick first,
// never touching ticks at or below end. It returns the unfilled quantity.
func (b *Orderbook) runMarketAsk(o *Order, end Bound, quantity uint64) (uint64, []Fill, error) {
	if o.Direction != Ask {
		return quantity, nil, fmt.Errorf("order %d is not an ask: %w", o.ID, ErrInvalidOrderType)
	}
	return b.sweep(o, end, quantity, false)
}

type sweepStep struct {
	tick     *Tick
	quantity uint64
}

type sweepPlan struct {
	steps   []sweepStep
	filled  uint64
	cost    uint64            // taker's pay leg for filled
	receive uint64            // taker's receive leg for filled
	credits map[uint64]uint64 // maker owner -> taker's pay asset it receives
}

// creditMakers adds what the orders at the head of t receive when quantity of
// the tick is taken.
func (p *sweepPlan) creditMakers(pair Pair, t *Tick, quantity uint64) error {
	if p.credits == nil {
		p.credits = make(map[uint64]uint64)
	}
	for _, m := range t.orders {
		if quantity == 0 {
			break
		}
		q := min(quantity, m.quantity)
		_, amount, err := m.receiveLeg(pair, q, t.ID)
		if err != nil {
			return err
		}
		if p.credits[m.Owner], err = addChecked(p.credits[m.Owner], amount); err != nil {
			return err
		}
		quantity -= q
	}
	return nil
}

// planSweep walks the opposite side without changing anything and decides how
// much to take from each tick.
func (b *Orderbook) planSweep(o *Order, end Bound, quantity uint64) (sweepPlan, error) {
	var (
		plan      sweepPlan
		planErr   error
		remaining = quantity
	)
	visit := func(t *Tick) bool {
		if remaining == 0 || t.Side == o.Direction || end.stops(o.Direction, t.ID) {
			return false
		}
		take := min(remaining, t.TotalQuantity())
		_, pay, err := o.payLeg(b.pair, take, t.ID)
		if err != nil {
			planErr = err
			return false
		}
		if plan.cost, err = addChecked(plan.cost, pay); err != nil {
			planErr = err
			return false
		}
		_, recv, err := o.receiveLeg(b.pair, take, t.ID)
		if err == nil {
			plan.receive, err = addChecked(plan.receive, recv)
		}
		if err == nil {
			err = plan.creditMakers(b.pair, t, take)
		}
		if err != nil {
			planErr = err
			return false
		}
		plan.steps = append(plan.steps, sweepStep{tick: t, quantity: take})
		plan.filled += take
		remaining -= take
		return true
	}

	if o.Direction == Bid {
		if from, ok := b.bestAsk.Tick(); ok {
			b.ticks.ascend(from, visit)
		}
	} else {
		if from, ok := b.bestBid.Tick(); ok {
			b.ticks.descend(from, visit)
		}
	}
	if planErr == nil {
		planErr = b.checkCredits(o, plan)
	}
	if planErr != nil {
		return sweepPlan{}, fmt.Errorf("order %d: %w", o.ID, planErr)
	}
	return plan, nil
}

// checkCredits makes sure every account the plan pays into can take the credit,
// so applying the plan cannot fail half way on an overflowing balance.
func (b *Orderbook) checkCredits(o *Order, plan sweepPlan) error {
	if err := b.checkCredit(o.Owner, o.receiveAsset(b.pair), plan.receive); err != nil {
		return err
	}
	makerAsset := o.payAsset(b.pair)
	for owner, amount := range plan.credits {
		if err := b.checkCredit(owner, makerAsset, amount); err != nil {
			return err
		}
	}
	return nil
}

func (b *Orderbook) checkCredit(id uint64, c account.Currency, amount uint64) error {
	bal := b.ledger.Balance(id, c)
	if _, carry := bits.Add64(bal, amount, 0); carry != 0 {
		return fmt.Errorf("account %d: receive %d %s, have %d: %w", id, amount, c, bal, account.ErrBalanceOverflow)
	}
	return nil
}

// sweep fills o against the opposite side. With rest set, collateral for the
// unfilled remainder at o's own tick is escrowed together with the fills.
//
// If the ledger fails while the plan is being applied, the fills settled so far
// stand, the collateral they did not use goes back to the owner, and the
// returned quantity is what is left of the order.
func (b *Orderbook) sweep(o *Order, end Bound, quantity uint64, rest bool) (uint64, []Fill, error) {
	plan, err := b.planSweep(o, end, quantity)
	if err != nil {
		return quantity, nil, err
	}
	remaining := quantity - plan.filled

	hold := plan.cost
	if rest && remaining > 0 {
		_, pay, err := o.payLeg(b.pair, remaining, o.TickID)
		if err != nil {
			return quantity, nil, fmt.Errorf("order %d: %w", o.ID, err)
		}
		if hold, err = addChecked(hold, pay); err != nil {
			return quantity, nil, fmt.Errorf("order %d: %w", o.ID, err)
		}
	}
	asset := o.payAsset(b.pair)
	if hold > 0 {
		if err := b.ledger.Transfer(o.Owner, b.escrow, asset, hold); err != nil {
			return quantity, nil, fmt.Errorf("order %d: escrow %d %s: %w", o.ID, hold, asset, err)
		}
	}
	if len(plan.steps) == 0 {
		return remaining, nil, nil
	}

	res, err := b.execute(o, plan)
	if err != nil {
		if unused := hold - res.cost; unused > 0 {
			if rerr := b.ledger.Transfer(b.escrow, o.Owner, asset, unused); rerr != nil {
				err = errors.Join(err, fmt.Errorf("order %d: return %d %s from escrow: %w", o.ID, unused, asset, rerr))
			}
		}
		return quantity - res.filled, res.fills, err
	}
	return remaining, res.fills, nil
}

// sweepResult is what execute actually settled.
type sweepResult struct {
	fills  []Fill
	filled uint64
	cost   uint64 // taker collateral paid out to makers
}

// execute applies a plan whose taker collateral is already in escrow. It stops
// at the first ledger error; the book is left consistent with whatever settled
// before that.
func (b *Orderbook) execute(o *Order, plan sweepPlan) (sweepResult, error) {
	s := b.settlement()
	now := b.clock.Now()

	var (
		res     sweepResult
		emptied []uint64
		levels  int
		err     error
	)
	for _, step := range plan.steps {
		var left uint64
		left, err = step.tick.FillTick(s, step.quantity)
		if filled := step.quantity - left; filled > 0 {
			levels++
			res.filled += filled
			// the plan priced the whole step, so a part of it cannot overflow
			_, pay, _ := o.payLeg(b.pair, filled, step.tick.ID)
			res.cost += pay
			if derr := o.DistributeFilledAssets(s, filled, step.tick.ID); derr != nil && err == nil {
				err = derr
			}
			b.lastTrade = at(step.tick.ID)
		}

		for _, m := range s.drain() {
			res.fills = append(res.fills, Fill{
				BookID:       b.id,
				TakerOrderID: o.ID,
				MakerOrderID: m.orderID,
				TakerAccount: o.Owner,
				MakerAccount: m.owner,
				Direction:    o.Direction,
				Tick:         m.tick,
				Quantity:     m.quantity,
				Timestamp:    now,
			})
			b.metrics.observeFill(m.quantity)
		}
		if step.tick.Empty() {
			emptied = append(emptied, step.tick.ID)
		}
		if err != nil {
			err = fmt.Errorf("fill tick %d: %w", step.tick.ID, err)
			break
		}
	}

	// levels are only dropped once the walk is over
	for _, id := range emptied {
		b.ticks.remove(id)
	}
	b.resync(o.Direction, plan.steps[0].tick.ID)

	if levels > 0 {
		b.metrics.observeSweep(levels)
		b.logger.Info("sweep_executed",
			zap.Uint64("order", o.ID),
			zap.Stringer("direction", o.Direction),
			zap.Uint64("filled", res.filled),
			zap.Int("levels", levels),
			zap.Int("levels_removed", len(emptied)),
			zap.Stringer("best_bid", b.bestBid),
			zap.Stringer("best_ask", b.bestAsk))
	}
	return res, err
}

// resync points the cursor the taker swept at the best tick left on that side.
func (b *Orderbook) resync(taker Direction, from uint64) {
	if taker == Bid {
		b.bestAsk = Cursor{}
		if t := b.ticks.ceiling(from); t != nil && t.Side == Ask {
			b.bestAsk = at(t.ID)
		}
		return
	}
	b.bestBid = Cursor{}
	if t := b.ticks.floor(from); t != nil && t.Side == Bid {
		b.bestBid = at(t.ID)
	}
}

// runPlaceLimit escrows the full collateral of a limit order and rests it at
// its own tick.
func (b *Orderbook) runPlaceLimit(o *Order) error {
	if o.Type != Limit {
		return fmt.Errorf("order %d (%s): %w", o.ID, o.Type, ErrInvalidOrderType)
	}
	if err := o.WithdrawDepositedAssets(b.settlement(), o.quantity, o.TickID); err != nil {
		return err
	}
	return b.restLimit(o)
}

// restLimit queues a copy of o at its tick and improves the cursor on its side.
// Collateral must already be in escrow.
func (b *Orderbook) restLimit(o *Order) error {
	tick := b.ticks.getOrInit(o.TickID, o.Direction)
	resting := *o
	if err := tick.PlaceLimit(&resting); err != nil {
		if tick.Empty() {
			b.ticks.remove(tick.ID)
		}
		return err
	}

	if o.Direction == Bid {
		if best, ok := b.bestBid.Tick(); !ok || o.TickID > best {
			b.bestBid = at(o.TickID)
		}
	} else {
		if best, ok := b.bestAsk.Tick(); !ok || o.TickID < best {
			b.bestAsk = at(o.TickID)
		}
	}

	b.logger.Debug("order_rested",
		zap.Uint64("order", o.ID),
		zap.Uint64("owner", o.Owner),
		zap.Stringer("direction", o.Direction),
		zap.Uint64("tick", o.TickID),
		zap.Uint64("quantity", o.quantity),
		zap.Uint64("level_quantity", tick.TotalQuantity()))
	return nil
}

// CancelOrder is not supported: resting orders stay until filled.
func (b *Orderbook) CancelOrder(orderID uint64) error {
	return fmt.Errorf("order %d: %w", orderID, ErrCancelNotSupported)
}

func (b *Orderbook) settlement() *Settlement {
	return &Settlement{Ledger: b.ledger, Pair: b.pair, Escrow: b.escrow}
}

// ID is the book id orders must carry.
func (b *Orderbook) ID() uint64 { return b.id }

// Pair returns the traded pair.
func (b *Orderbook) Pair() Pair { return b.pair }

// QuoteAsset is the traded asset.
func (b *Orderbook) QuoteAsset() account.Currency { return b.pair.Quote }

// BaseAsset is the asset prices are expressed in.
func (b *Orderbook) BaseAsset() account.Currency { return b.pair.Base }

// EscrowAccount is the ledger account holding resting collateral.
func (b *Orderbook) EscrowAccount() uint64 { return b.escrow }

func (b *Orderbook) BestBid() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestBid
}

func (b *Orderbook) BestAsk() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestAsk
}

// LastTrade is the tick of the most recent fill
func (b *Orderbook) LastTrade() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTrade
}

// MidPrice returns the average of best bid and best ask, or false when either
// side is empty.
func (b *Orderbook) MidPrice() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid, okBid := b.bestBid.Tick()
	ask, okAsk := b.bestAsk.Tick()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return PriceOfTick(bid).Add(PriceOfTick(ask)).Div(decimal.NewFromInt(2)), true
}

// Ticks returns the ids of all live ticks in ascending order.
func (b *Orderbook) Ticks() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]uint64, 0, b.ticks.Len())
	b.ticks.ascend(0, func(t *Tick) bool {
		ids = append(ids, t.ID)
		return true
	})
	return ids
}

// Levels returns every live tick, both sides, in ascending order.
func (b *Orderbook) Levels() []PriceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := make([]PriceLevel, 0, b.ticks.Len())
	b.ticks.ascend(0, func(t *Tick) bool {
		levels = append(levels, levelOf(t))
		return true
	})
	return levels
}

// BidLevels returns bid levels best first (highest tick first).
func (b *Orderbook) BidLevels() []PriceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()

	var levels []PriceLevel
	if from, ok := b.bestBid.Tick(); ok {
		b.ticks.descend(from, func(t *Tick) bool {
			levels = append(levels, levelOf(t))
			return true
		})
	}
	return levels
}

// AskLevels returns ask levels best first (lowest tick first).
func (b *Orderbook) AskLevels() []PriceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()

	var levels []PriceLevel
	if from, ok := b.bestAsk.Tick(); ok {
		b.ticks.ascend(from, func(t *Tick) bool {
			levels = append(levels, levelOf(t))
			return true
		})
	}
	return levels
}

func levelOf(t *Tick) PriceLevel {
	return PriceLevel{Tick: t.ID, Side: t.Side, Quantity: t.TotalQuantity(), Orders: t.Len()}
}
