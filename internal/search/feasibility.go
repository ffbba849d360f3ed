package search

import (
	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// OrderFeasible reports whether the agent could place the given order
// with its current cash and available inventory. A buy consumes cash,
// a sell consumes units from the security's available inventory.
func OrderFeasible(h *domain.Holdings, o domain.Order) bool {
	cash := h.Cash
	avail := h.Position(o.SecurityID).UnitsAvailable

	switch o.Side {
	case domain.SideBuy:
		cash -= o.Price * quant.Cents(o.Units)
	case domain.SideSell:
		avail -= o.Units
	}
	return cash >= 0 && avail >= 0
}

// CombinationFeasible reports whether the agent could trade against
// every resting order in legs at once. Sides are the resting sides:
// taking a resting ask consumes cash, filling a resting bid consumes
// available inventory. Costs accumulate across legs with no interim
// credits, so a combination can fail on aggregate cash even when each
// leg passes alone. An empty combination is never feasible.
func CombinationFeasible(h *domain.Holdings, legs []domain.Order) bool {
	if len(legs) == 0 {
		return false
	}

	cash := h.Cash
	avail := make(map[int]quant.Units, len(h.Positions))
	for id, pos := range h.Positions {
		avail[id] = pos.UnitsAvailable
	}

	for _, leg := range legs {
		switch leg.Side {
		case domain.SideBuy:
			avail[leg.SecurityID] -= leg.Units
		case domain.SideSell:
			cash -= leg.Price * quant.Cents(leg.Units)
		}
	}

	if cash < 0 {
		return false
	}
	for _, u := range avail {
		if u < 0 {
			return false
		}
	}
	return true
}
