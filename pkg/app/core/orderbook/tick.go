package orderbook

import "fmt"

// Tick is a FIFO queue of resting limit orders at one price.
// Orders join at the tail and are filled from the head, which is what gives
// time priority within a price.
type Tick struct {
	ID   uint64
	Side Direction

	orders        []*Order
	totalQuantity uint64 // sum of remaining quantity of queued orders
}

func NewTick(id uint64, side Direction) *Tick {
	return &Tick{ID: id, Side: side}
}

// PlaceLimit appends a limit order to the tail of the queue.
func (t *Tick) PlaceLimit(o *Order) error {
	if o.Type != Limit {
		return fmt.Errorf("order %d (%s) at tick %d: %w", o.ID, o.Type, t.ID, ErrInvalidOrderType)
	}
	t.orders = append(t.orders, o)
	t.totalQuantity += o.quantity
	return nil
}

// FillTick fills head orders until quantity is used up or the queue is empty,
// popping every order that reaches zero. It returns the unfilled part of quantity.
func (t *Tick) FillTick(s *Settlement, quantity uint64) (uint64, error) {
	remaining := quantity
	for remaining > 0 && len(t.orders) > 0 {
		head := t.orders[0]
		before := head.quantity

		left, err := head.FillOrder(s, remaining)
		t.totalQuantity -= before - head.quantity
		if err != nil {
			return remaining - (before - head.quantity), err
		}
		remaining = left

		if head.quantity == 0 {
			t.orders[0] = nil
			t.orders = t.orders[1:]
		}
	}
	return remaining, nil
}

// TotalQuantity returns the resting quantity at this price
func (t *Tick) TotalQuantity() uint64 {
	return t.totalQuantity
}

func (t *Tick) Len() int {
	return len(t.orders)
}

func (t *Tick) Empty() bool {
	return len(t.orders) == 0
}

// Head returns the order with time priority, or nil.
func (t *Tick) Head() *Order {
	if len(t.orders) == 0 {
		return nil
	}
	return t.orders[0]
}

// Orders returns the queue in time priority order.
// The slice is a copy; the orders are not.
func (t *Tick) Orders() []*Order {
	out := make([]*Order, len(t.orders))
	copy(out, t.orders)
	return out
}
