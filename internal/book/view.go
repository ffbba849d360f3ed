// Package book reduces a raw marketplace order snapshot to the per
// security best competing quotes the decision logic trades against.
package book

import (
	"sort"

	"github.com/psj098/capmbot/internal/domain"
)

// Best holds the best competing quotes for one security. A side with
// no competing order is nil. Quotes are normalized to unit size; the
// decision logic only ever trades one unit per leg.
type Best struct {
	Bid *domain.Order
	Ask *domain.Order
}

// Reduce builds the best competing bid and ask per security from a
// full order snapshot. Our own orders are excluded: trading against
// ourselves is never an improvement. Ties keep the first order seen.
func Reduce(orders []domain.Order) map[int]Best {
	best := make(map[int]Best)

	for i := range orders {
		o := orders[i]
		if o.Mine || !o.IsOpen() {
			continue
		}

		q := o
		q.Units = 1

		b := best[o.SecurityID]
		switch o.Side {
		case domain.SideBuy:
			if b.Bid == nil || q.Price > b.Bid.Price {
				b.Bid = &q
			}
		case domain.SideSell:
			if b.Ask == nil || q.Price < b.Ask.Price {
				b.Ask = &q
			}
		}
		best[o.SecurityID] = b
	}

	return best
}

// Candidates flattens best quotes into the candidate list for the
// combination search: all asks first, then all bids, each sorted by
// security id so enumeration order is deterministic.
func Candidates(best map[int]Best) []domain.Order {
	ids := make([]int, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var cands []domain.Order
	for _, id := range ids {
		if ask := best[id].Ask; ask != nil {
			cands = append(cands, *ask)
		}
	}
	for _, id := range ids {
		if bid := best[id].Bid; bid != nil {
			cands = append(cands, *bid)
		}
	}
	return cands
}
