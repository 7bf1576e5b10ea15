package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uhyunpark/tickbook/pkg/app/core"
	"github.com/uhyunpark/tickbook/pkg/app/core/orderbook"
)

var errQuit = errors.New("quit")

// session drives one book from text commands, one per line:
//
//	bid limit <qty> <price>    rest or cross a limit buy
//	ask market <qty>           sell into the bids
//	book                       print both sides
//	balance                    print session balances
//	quit
type session struct {
	book         *core.Orderbook
	ledger       *core.Ledger
	account      uint64
	counterparty uint64
	out          io.Writer
	log          *zap.SugaredLogger

	nextOrderID uint64
}

// seed rests a ladder of counterparty liquidity on both sides of the book.
func (s *session) seed() error {
	for _, tick := range []uint64{10, 13, 14, 21} {
		if _, _, err := s.submit(s.counterparty, core.Limit, core.Ask, tick, 300); err != nil {
			return fmt.Errorf("seed ask %d: %w", tick, err)
		}
	}
	for _, tick := range []uint64{5, 7, 8, 9} {
		if _, _, err := s.submit(s.counterparty, core.Limit, core.Bid, tick, 300); err != nil {
			return fmt.Errorf("seed bid %d: %w", tick, err)
		}
	}
	return nil
}

func (s *session) submit(owner uint64, typ core.OrderType, dir core.Direction, tick, qty uint64) (*core.Order, []core.Fill, error) {
	s.nextOrderID++
	o := core.NewOrder(s.nextOrderID, tick, s.book.ID(), owner, typ, dir, qty)
	fills, err := s.book.HandleOrder(o)
	if err != nil {
		return o, nil, err
	}
	for _, f := range fills {
		s.log.Infow("fill",
			"taker_order", f.TakerOrderID,
			"maker_order", f.MakerOrderID,
			"price", f.Price().String(),
			"qty", f.Quantity,
		)
	}
	return o, fills, nil
}

// run reads commands until EOF or quit. Command errors are reported and the
// session continues.
func (s *session) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		err := s.exec(strings.Fields(line))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			s.log.Infow("command_failed", "command", line, "error", err)
		}
	}
	return sc.Err()
}

func (s *session) exec(args []string) error {
	switch strings.ToLower(args[0]) {
	case "bid", "ask":
		return s.order(args)
	case "book":
		s.printBook()
		return nil
	case "balance", "balances":
		s.printBalances()
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (s *session) order(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s <limit|market> <qty> [price]", args[0])
	}
	dir := core.Bid
	if strings.EqualFold(args[0], "ask") {
		dir = core.Ask
	}
	qty, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("quantity %q: %w", args[2], err)
	}

	var (
		typ  core.OrderType
		tick uint64
	)
	switch strings.ToLower(args[1]) {
	case "market":
		typ = core.Market
	case "limit":
		if len(args) < 4 {
			return errors.New("limit orders need a price")
		}
		typ = core.Limit
		if tick, err = core.ParseTick(args[3]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown order type %q", args[1])
	}

	o, fills, err := s.submit(s.account, typ, dir, tick, qty)
	if err != nil {
		return err
	}

	var filled uint64
	for _, f := range fills {
		filled += f.Quantity
	}
	quote := s.book.QuoteAsset()
	switch {
	case typ == core.Limit && o.Quantity() > 0:
		fmt.Fprintf(s.out, "%s %s: filled %d %s, resting %d at %s %s\n",
			typ, dir, filled, quote, o.Quantity(), core.PriceOfTick(tick), s.book.BaseAsset())
	case typ == core.Market && o.Quantity() > 0:
		fmt.Fprintf(s.out, "%s %s: filled %d %s, %d unfilled\n", typ, dir, filled, quote, o.Quantity())
	default:
		fmt.Fprintf(s.out, "%s %s: filled %d %s\n", typ, dir, filled, quote)
	}
	return nil
}

func (s *session) printBook() {
	asks := s.book.AskLevels()
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(s.out, "  ask %8s  %d (%d orders)\n", core.PriceOfTick(asks[i].Tick), asks[i].Quantity, asks[i].Orders)
	}
	fmt.Fprintln(s.out, "  ----")
	for _, l := range s.book.BidLevels() {
		fmt.Fprintf(s.out, "  bid %8s  %d (%d orders)\n", core.PriceOfTick(l.Tick), l.Quantity, l.Orders)
	}
}

func (s *session) printBalances() {
	quote, base := s.book.QuoteAsset(), s.book.BaseAsset()
	fmt.Fprintf(s.out, "%s: %d\n", quote, s.ledger.Balance(s.account, quote))
	fmt.Fprintf(s.out, "%s: %d (1/%d units)\n", base, s.ledger.Balance(s.account, base), orderbook.TicksPerUnit)
}
