package quant

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Cents represents a currency amount in integer cents.
// E.g., $2.50 = 250 Cents. All marketplace prices and cash
// balances are carried as Cents end to end.
type Cents int64

// Units represents an order or position size in whole instrument units.
type Units int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const CentsPerDollar = 100

// Dollars converts Cents to a float64 dollar amount.
// Note: Only used at the scoring and reporting boundary. Accounting
// stays in integer Cents.
func (c Cents) Dollars() float64 {
	return float64(c) / CentsPerDollar
}

func (c Cents) String() string {
	return fmt.Sprintf("%.2f", c.Dollars())
}

// ParseCents parses a whole-cent numeric string into Cents.
// Fractional or non-numeric input is an error, not a truncation.
func ParseCents(s string) (Cents, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cent amount %q: %w", s, err)
	}
	return Cents(v), nil
}

// ParseTimeStamp converts a string (ms) to TimeStamp (micros).
func ParseTimeStamp(s string) (TimeStamp, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeStamp(ms * 1000), nil
}

// NextSeq generates the next sequence number atomically.
// All event sources feeding one sequencer share a single counter.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}
