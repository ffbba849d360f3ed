package search

import (
	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/risk"
	"github.com/psj098/capmbot/pkg/quant"
)

// Result is a trade set selected by Best: the resting legs to take and
// the portfolio score reached after taking them.
type Result struct {
	Legs  []domain.Order
	Score float64
}

// PotentialScore evaluates the portfolio score after trading against
// the given resting legs. Taking a resting ask adds its units and
// spends cash; filling a resting bid removes units and credits cash.
// The real holdings are never touched, only scratch copies.
func PotentialScore(sc *risk.Scorer, h *domain.Holdings, legs []domain.Order) float64 {
	cash := h.Cash
	units := h.UnitsByID()

	for _, leg := range legs {
		cost := leg.Price * quant.Cents(leg.Units)
		switch leg.Side {
		case domain.SideSell:
			units[leg.SecurityID] += leg.Units
			cash -= cost
		case domain.SideBuy:
			units[leg.SecurityID] -= leg.Units
			cash += cost
		}
	}
	return sc.Score(cash, units)
}

// Best enumerates combinations of the resting quotes, at most one leg
// per security, and returns the feasible combination scoring strictly
// above current. Singles come first, then every subset of size 2 up to
// the model's state count in lexicographic candidate order. Ties keep
// the first combination that reached the winning score.
func Best(cands []domain.Order, h *domain.Holdings, sc *risk.Scorer, current float64) (Result, bool) {
	best := Result{Score: current}
	found := false

	consider := func(legs []domain.Order) {
		if !CombinationFeasible(h, legs) {
			return
		}
		score := PotentialScore(sc, h, legs)
		if score > best.Score {
			best = Result{Legs: append([]domain.Order(nil), legs...), Score: score}
			found = true
		}
	}

	for i := range cands {
		consider(cands[i : i+1])
	}

	for size := 2; size <= sc.Model().States(); size++ {
		subsets(cands, size, func(legs []domain.Order) {
			if duplicateSecurity(legs) {
				return
			}
			consider(legs)
		})
	}
	return best, found
}

// subsets invokes fn with every size-k subsequence of cands in
// lexicographic index order. The slice passed to fn is reused between
// calls; fn must copy it to retain it.
func subsets(cands []domain.Order, k int, fn func([]domain.Order)) {
	n := len(cands)
	if k > n {
		return
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	legs := make([]domain.Order, k)

	for {
		for i, j := range idx {
			legs[i] = cands[j]
		}
		fn(legs)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func duplicateSecurity(legs []domain.Order) bool {
	seen := make(map[int]struct{}, len(legs))
	for _, leg := range legs {
		if _, ok := seen[leg.SecurityID]; ok {
			return true
		}
		seen[leg.SecurityID] = struct{}{}
	}
	return false
}
