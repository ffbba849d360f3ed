package risk

import (
	"github.com/psj098/capmbot/pkg/quant"
)

// DefaultRiskPenalty is the variance weight used when none is
// configured.
const DefaultRiskPenalty = 0.007

// Scorer turns an account state into a single risk-adjusted
// performance number:
//
//	score = cash$ + sum(ER_i$ * units_i) - penalty * portfolioVariance
//
// Cash and expected returns enter in dollars, variance in dollars
// squared. Higher is better; every trading decision reduces to
// comparing this number before and after a hypothetical trade.
type Scorer struct {
	model   *Model
	penalty float64
}

func NewScorer(model *Model, penalty float64) *Scorer {
	return &Scorer{model: model, penalty: penalty}
}

// Model returns the payoff model the scorer prices against.
func (s *Scorer) Model() *Model {
	return s.model
}

// Score computes the performance of the given cash and unit holdings.
// The inputs are read only; callers pass scratch copies for what-if
// evaluation.
func (s *Scorer) Score(cash quant.Cents, units map[int]quant.Units) float64 {
	expected := cash.Dollars()
	for _, id := range s.model.ids {
		expected += (s.model.ExpectedReturnCents(id) / quant.CentsPerDollar) * float64(units[id])
	}
	return expected - s.penalty*s.model.PortfolioVariance(units)
}
