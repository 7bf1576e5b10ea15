package account

import (
	"fmt"
	"strings"
)

// Currency identifies a tradable asset held in a ledger.
type Currency int8

const (
	USD Currency = iota
	OSMO
)

func (c Currency) String() string {
	switch c {
	case USD:
		return "USD"
	case OSMO:
		return "OSMO"
	default:
		return "UNKNOWN"
	}
}

// ParseCurrency maps a ticker (case-insensitive) back to its Currency.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USD":
		return USD, nil
	case "OSMO":
		return OSMO, nil
	default:
		return 0, fmt.Errorf("unknown currency %q", s)
	}
}
