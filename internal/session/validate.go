package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError reports user input the bot rejected locally. The message is
// written for the chat, not the log.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

const (
	minLotSize = 1
	maxLotSize = 1000
)

var (
	one      = decimal.NewFromInt(1)
	hundred  = decimal.NewFromInt(100)
	maxPrice = decimal.NewFromInt(1000000)
)

// ParseLotSize accepts a whole number of lots between 1 and 1000.
func ParseLotSize(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ValidationError{Msg: "Lot size must be a whole number."}
	}
	if n < minLotSize || n > maxLotSize {
		return 0, &ValidationError{Msg: fmt.Sprintf("Lot size must be between %d and %d.", minLotSize, maxLotSize)}
	}
	return n, nil
}

// ParsePercent accepts a percentage greater than 0 and at most 100.
func ParsePercent(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Msg: "Percentage must be a number."}
	}
	if v.Cmp(decimal.Zero) <= 0 || v.Cmp(hundred) > 0 {
		return decimal.Decimal{}, &ValidationError{Msg: "Percentage must be greater than 0 and at most 100."}
	}
	return v, nil
}

// ParsePrice accepts an absolute price greater than 0 and at most 1,000,000.
func ParsePrice(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Msg: "Price must be a number."}
	}
	if v.Cmp(decimal.Zero) <= 0 || v.Cmp(maxPrice) > 0 {
		return decimal.Decimal{}, &ValidationError{Msg: "Price must be greater than 0 and at most 1,000,000."}
	}
	return v, nil
}

// StopPriceFromPercent derives a stop-loss trigger from entry: pct below
// entry for longs, above for shorts.
func StopPriceFromPercent(entry, pct decimal.Decimal, long bool) decimal.Decimal {
	frac := pct.Div(hundred)
	if long {
		return entry.Mul(one.Sub(frac))
	}
	return entry.Mul(one.Add(frac))
}

// TargetPriceFromPercent derives a take-profit trigger from entry: pct above
// entry for longs, below for shorts.
func TargetPriceFromPercent(entry, pct decimal.Decimal, long bool) decimal.Decimal {
	frac := pct.Div(hundred)
	if long {
		return entry.Mul(one.Add(frac))
	}
	return entry.Mul(one.Sub(frac))
}

// ProtectPriceFromPercent derives the price for the given protective kind.
func ProtectPriceFromPercent(kind ProtectKind, entry, pct decimal.Decimal, long bool) decimal.Decimal {
	if kind == ProtectTarget {
		return TargetPriceFromPercent(entry, pct, long)
	}
	return StopPriceFromPercent(entry, pct, long)
}
