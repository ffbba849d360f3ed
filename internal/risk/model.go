// Package risk prices portfolios under the discrete payoff model: each
// security pays out one of N equally likely state payoffs at session
// end. Expected returns, variances and covariances are closed-form over
// the payoff vectors, so no sampling or history is involved.
package risk

import (
	"fmt"
	"sort"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// varianceScale converts cents-squared moments to dollars-squared.
const varianceScale = 10000

// pair is a canonical unordered security pair, Lo < Hi.
type pair struct {
	Lo, Hi int
}

func pairOf(a, b int) pair {
	if a > b {
		a, b = b, a
	}
	return pair{Lo: a, Hi: b}
}

// Model holds the precomputed moments for a fixed security set.
// Build once per security set; scoring then reads only maps.
type Model struct {
	states   int
	ids      []int // sorted for deterministic iteration
	expected map[int]float64 // cents
	variance map[int]float64 // dollars squared
	cov      map[pair]float64 // dollars squared
}

// NewModel precomputes expected returns, variances and pairwise
// covariances for the given securities. All payoff vectors must have
// the same number of states; a marketplace publishing mismatched
// descriptions is unusable and that is a construction error, not
// something to limp past.
func NewModel(securities []domain.Security) (*Model, error) {
	if len(securities) == 0 {
		return nil, fmt.Errorf("no securities")
	}

	states := len(securities[0].Payoffs)
	if states == 0 {
		return nil, fmt.Errorf("security %d (%s) has no payoff states", securities[0].ID, securities[0].Item)
	}
	for _, s := range securities {
		if len(s.Payoffs) != states {
			return nil, fmt.Errorf("security %d (%s) has %d payoff states, expected %d",
				s.ID, s.Item, len(s.Payoffs), states)
		}
	}

	m := &Model{
		states:   states,
		ids:      make([]int, 0, len(securities)),
		expected: make(map[int]float64, len(securities)),
		variance: make(map[int]float64, len(securities)),
		cov:      make(map[pair]float64),
	}

	bySec := make(map[int]domain.Security, len(securities))
	for _, s := range securities {
		if _, dup := bySec[s.ID]; dup {
			return nil, fmt.Errorf("duplicate security id %d", s.ID)
		}
		bySec[s.ID] = s
		m.ids = append(m.ids, s.ID)
	}
	sort.Ints(m.ids)

	for _, id := range m.ids {
		m.expected[id] = expectedPayoff(bySec[id].Payoffs)
		m.variance[id] = payoffVariance(bySec[id].Payoffs)
	}
	for i, lo := range m.ids {
		for _, hi := range m.ids[i+1:] {
			m.cov[pair{Lo: lo, Hi: hi}] = payoffCovariance(bySec[lo].Payoffs, bySec[hi].Payoffs)
		}
	}

	return m, nil
}

// States returns the number of world states, which also caps the size
// of order combinations worth considering.
func (m *Model) States() int {
	return m.states
}

// IDs returns the model's security ids in ascending order.
func (m *Model) IDs() []int {
	ids := make([]int, len(m.ids))
	copy(ids, m.ids)
	return ids
}

// Covers reports whether every id in units is priced by the model.
func (m *Model) Covers(units map[int]quant.Units) bool {
	for id := range units {
		if _, ok := m.expected[id]; !ok {
			return false
		}
	}
	return true
}

// ExpectedReturnCents returns the mean payoff of a security in cents.
// Panics on an unknown id: asking the model about a security it was
// not built for is a wiring bug upstream.
func (m *Model) ExpectedReturnCents(id int) float64 {
	er, ok := m.expected[id]
	if !ok {
		panic(fmt.Sprintf("RISK_UNKNOWN_SECURITY: %d", id))
	}
	return er
}

// Variance returns the payoff variance of a security in dollars
// squared. Panics on an unknown id.
func (m *Model) Variance(id int) float64 {
	v, ok := m.variance[id]
	if !ok {
		panic(fmt.Sprintf("RISK_UNKNOWN_SECURITY: %d", id))
	}
	return v
}

// Covariance returns the payoff covariance of two securities in
// dollars squared. The pair is unordered; the covariance of a security
// with itself is its variance. Panics on an unknown pair.
func (m *Model) Covariance(a, b int) float64 {
	if a == b {
		return m.Variance(a)
	}
	c, ok := m.cov[pairOf(a, b)]
	if !ok {
		panic(fmt.Sprintf("RISK_UNKNOWN_PAIR: %d+%d", a, b))
	}
	return c
}

// PortfolioVariance returns the payoff variance of a whole portfolio:
// sum of h_i^2 * var_i plus 2 * h_i * h_j * cov_ij over unordered
// pairs. Securities absent from units contribute nothing. Iteration
// runs over the model's sorted ids so results are reproducible.
func (m *Model) PortfolioVariance(units map[int]quant.Units) float64 {
	for id := range units {
		if _, ok := m.expected[id]; !ok {
			panic(fmt.Sprintf("RISK_UNKNOWN_SECURITY: %d", id))
		}
	}

	var total float64
	for _, id := range m.ids {
		h := float64(units[id])
		total += h * h * m.variance[id]
	}
	for i, lo := range m.ids {
		for _, hi := range m.ids[i+1:] {
			total += 2 * float64(units[lo]) * float64(units[hi]) * m.cov[pair{Lo: lo, Hi: hi}]
		}
	}
	return total
}

// expectedPayoff is the equal-probability mean in cents.
func expectedPayoff(payoffs []quant.Cents) float64 {
	var sum float64
	for _, p := range payoffs {
		sum += float64(p)
	}
	return sum / float64(len(payoffs))
}

// payoffVariance is E[X^2] - E[X]^2 over equally likely states,
// scaled from cents^2 to dollars^2.
func payoffVariance(payoffs []quant.Cents) float64 {
	n := float64(len(payoffs))
	var sum, sumSq float64
	for _, p := range payoffs {
		x := float64(p)
		sum += x
		sumSq += x * x
	}
	variance := sumSq/n - (sum*sum)/(n*n)
	return variance / varianceScale
}

// payoffCovariance is E[XY] - E[X]E[Y] over equally likely states,
// scaled from cents^2 to dollars^2.
func payoffCovariance(a, b []quant.Cents) float64 {
	n := float64(len(a))
	var sumAB float64
	for i := range a {
		sumAB += float64(a[i]) * float64(b[i])
	}
	cov := sumAB/n - expectedPayoff(a)*expectedPayoff(b)
	return cov / varianceScale
}
