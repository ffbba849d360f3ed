package domain

import (
	"fmt"

	"github.com/psj098/capmbot/pkg/quant"
	"github.com/psj098/capmbot/pkg/safe"
)

// Position is the holding in one security. UnitsAvailable is Units
// minus whatever is locked behind our open sell orders.
type Position struct {
	SecurityID     int         `json:"security_id"`
	Units          quant.Units `json:"units"`
	UnitsAvailable quant.Units `json:"units_available"`
}

// Holdings is the full account state: cash plus per-security positions.
// CashAvailable is Cash minus whatever is locked behind our open buy
// orders. Not safe for concurrent use; the decision loop owns it.
type Holdings struct {
	Cash          quant.Cents      `json:"cash"`
	CashAvailable quant.Cents      `json:"cash_available"`
	Positions     map[int]Position `json:"positions"`
}

func NewHoldings() *Holdings {
	return &Holdings{Positions: make(map[int]Position)}
}

// Position returns the holding in a security, zero-valued if we have
// never held it.
func (h *Holdings) Position(id int) Position {
	p, ok := h.Positions[id]
	if !ok {
		return Position{SecurityID: id}
	}
	return p
}

// SetPosition replaces the holding in a security.
func (h *Holdings) SetPosition(p Position) {
	h.Positions[p.SecurityID] = p
}

// UnitsByID returns the units held per security. This is the input
// shape for scoring.
func (h *Holdings) UnitsByID() map[int]quant.Units {
	units := make(map[int]quant.Units, len(h.Positions))
	for id, p := range h.Positions {
		units[id] = p.Units
	}
	return units
}

// Clone deep-copies the holdings. Scratch copies are mandatory for
// what-if calculations; mutating live holdings from a hypothetical is
// how accounting drifts.
func (h *Holdings) Clone() *Holdings {
	c := &Holdings{
		Cash:          h.Cash,
		CashAvailable: h.CashAvailable,
		Positions:     make(map[int]Position, len(h.Positions)),
	}
	for id, p := range h.Positions {
		c.Positions[id] = p
	}
	return c
}

// CreditCash adds settled cash.
func (h *Holdings) CreditCash(c quant.Cents) {
	h.Cash = quant.Cents(safe.SafeAdd(int64(h.Cash), int64(c)))
	h.CashAvailable = quant.Cents(safe.SafeAdd(int64(h.CashAvailable), int64(c)))
}

// DebitCash removes settled cash whose availability was already
// consumed by ReserveCash.
func (h *Holdings) DebitCash(c quant.Cents) {
	h.Cash = quant.Cents(safe.SafeSub(int64(h.Cash), int64(c)))
	if h.Cash < 0 {
		panic(fmt.Sprintf("HOLDINGS_NEGATIVE_CASH: debit %d", c))
	}
}

// ReserveCash locks cash behind an open buy order.
func (h *Holdings) ReserveCash(c quant.Cents) {
	h.CashAvailable = quant.Cents(safe.SafeSub(int64(h.CashAvailable), int64(c)))
	if h.CashAvailable < 0 {
		panic(fmt.Sprintf("HOLDINGS_OVERRESERVED_CASH: reserve %d", c))
	}
}

// ReleaseCash unlocks cash when an open buy order leaves the book
// without trading.
func (h *Holdings) ReleaseCash(c quant.Cents) {
	h.CashAvailable = quant.Cents(safe.SafeAdd(int64(h.CashAvailable), int64(c)))
}

// CreditUnits adds settled units of a security.
func (h *Holdings) CreditUnits(id int, u quant.Units) {
	p := h.Position(id)
	p.Units = quant.Units(safe.SafeAdd(int64(p.Units), int64(u)))
	p.UnitsAvailable = quant.Units(safe.SafeAdd(int64(p.UnitsAvailable), int64(u)))
	h.Positions[id] = p
}

// DebitUnits removes settled units whose availability was already
// consumed by ReserveUnits.
func (h *Holdings) DebitUnits(id int, u quant.Units) {
	p := h.Position(id)
	p.Units = quant.Units(safe.SafeSub(int64(p.Units), int64(u)))
	if p.Units < 0 {
		panic(fmt.Sprintf("HOLDINGS_NEGATIVE_UNITS: security %d debit %d", id, u))
	}
	h.Positions[id] = p
}

// ReserveUnits locks units behind an open sell order.
func (h *Holdings) ReserveUnits(id int, u quant.Units) {
	p := h.Position(id)
	p.UnitsAvailable = quant.Units(safe.SafeSub(int64(p.UnitsAvailable), int64(u)))
	if p.UnitsAvailable < 0 {
		panic(fmt.Sprintf("HOLDINGS_OVERRESERVED_UNITS: security %d reserve %d", id, u))
	}
	h.Positions[id] = p
}

// ReleaseUnits unlocks units when an open sell order leaves the book
// without trading.
func (h *Holdings) ReleaseUnits(id int, u quant.Units) {
	p := h.Position(id)
	p.UnitsAvailable = quant.Units(safe.SafeAdd(int64(p.UnitsAvailable), int64(u)))
	h.Positions[id] = p
}

// VerifyInvariant panics if the account state is inconsistent.
func (h *Holdings) VerifyInvariant() {
	if h.Cash < 0 {
		panic(fmt.Sprintf("HOLDINGS_INVARIANT_CASH: %d", h.Cash))
	}
	if h.CashAvailable < 0 || h.CashAvailable > h.Cash {
		panic(fmt.Sprintf("HOLDINGS_INVARIANT_CASH_AVAILABLE: %d of %d", h.CashAvailable, h.Cash))
	}
	for id, p := range h.Positions {
		if p.Units < 0 {
			panic(fmt.Sprintf("HOLDINGS_INVARIANT_UNITS: security %d units %d", id, p.Units))
		}
		if p.UnitsAvailable < 0 || p.UnitsAvailable > p.Units {
			panic(fmt.Sprintf("HOLDINGS_INVARIANT_UNITS_AVAILABLE: security %d available %d of %d",
				id, p.UnitsAvailable, p.Units))
		}
	}
}
