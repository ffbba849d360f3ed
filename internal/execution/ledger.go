package execution

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// LedgerEntry is one accepted order valued in exact dollars.
type LedgerEntry struct {
	Ref        string
	SecurityID int
	Side       domain.Side
	Price      decimal.Decimal
	Units      int64
	Ts         time.Time
}

// Ledger accumulates accepted order flow in exact decimal arithmetic.
// Float drift is tolerable in scoring; it is not tolerable in the
// session report that gets reconciled against the venue statement.
type Ledger struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries []LedgerEntry
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger}
}

// Record books one accepted order.
func (l *Ledger) Record(o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LedgerEntry{
		Ref:        o.Ref,
		SecurityID: o.SecurityID,
		Side:       o.Side,
		Price:      centsToDollars(o.Price),
		Units:      int64(o.Units),
		Ts:         time.Now(),
	})
}

// NetCashFlow returns sell proceeds minus buy outlay in dollars.
func (l *Ledger) NetCashFlow() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, e := range l.entries {
		amount := e.Price.Mul(decimal.NewFromInt(e.Units))
		if e.Side == domain.SideSell {
			total = total.Add(amount)
		} else {
			total = total.Sub(amount)
		}
	}
	return total
}

// NetUnits returns net units traded per security, buys positive.
func (l *Ledger) NetUnits() map[int]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	net := make(map[int]int64)
	for _, e := range l.entries {
		if e.Side == domain.SideBuy {
			net[e.SecurityID] += e.Units
		} else {
			net[e.SecurityID] -= e.Units
		}
	}
	return net
}

// Size returns the number of booked entries.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Report logs the session summary.
func (l *Ledger) Report() {
	net := l.NetUnits()

	ids := make([]int, 0, len(net))
	for id := range net {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	l.logger.Info("Session ledger",
		zap.Int("orders", l.Size()),
		zap.String("net_cash_flow", l.NetCashFlow().StringFixed(2)))
	for _, id := range ids {
		l.logger.Info("Session ledger security",
			zap.Int("security", id),
			zap.Int64("net_units", net[id]))
	}
}

// centsToDollars converts integer cents to an exact decimal dollar
// amount, 250 cents to 2.50.
func centsToDollars(c quant.Cents) decimal.Decimal {
	return decimal.New(int64(c), -2)
}
