package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

func holdingsWith(cash int64, units map[int]int64) *domain.Holdings {
	h := domain.NewHoldings()
	h.Cash = quant.Cents(cash)
	h.CashAvailable = quant.Cents(cash)
	for id, u := range units {
		h.SetPosition(domain.Position{
			SecurityID:     id,
			Units:          quant.Units(u),
			UnitsAvailable: quant.Units(u),
		})
	}
	return h
}

func ask(sec int, price int64) domain.Order {
	return domain.Order{
		SecurityID: sec,
		Side:       domain.SideSell,
		Type:       domain.TypeLimit,
		Price:      quant.Cents(price),
		Units:      1,
		Status:     domain.StatusNew,
	}
}

func bid(sec int, price int64) domain.Order {
	return domain.Order{
		SecurityID: sec,
		Side:       domain.SideBuy,
		Type:       domain.TypeLimit,
		Price:      quant.Cents(price),
		Units:      1,
		Status:     domain.StatusNew,
	}
}

func TestOrderFeasible_Buy(t *testing.T) {
	h := holdingsWith(500, nil)

	assert.True(t, OrderFeasible(h, bid(1, 400)))
	assert.True(t, OrderFeasible(h, bid(1, 500)), "exact cash is allowed")
	assert.False(t, OrderFeasible(h, bid(1, 600)))

	two := bid(1, 300)
	two.Units = 2
	assert.False(t, OrderFeasible(h, two), "cost scales with units")
}

func TestOrderFeasible_Sell(t *testing.T) {
	h := holdingsWith(0, map[int]int64{1: 1})

	assert.True(t, OrderFeasible(h, ask(1, 400)))

	two := ask(1, 400)
	two.Units = 2
	assert.False(t, OrderFeasible(h, two))

	assert.False(t, OrderFeasible(h, ask(2, 400)), "never-held security has no inventory")
}

func TestOrderFeasible_DoesNotMutateHoldings(t *testing.T) {
	h := holdingsWith(500, map[int]int64{1: 3})

	OrderFeasible(h, bid(1, 400))
	OrderFeasible(h, ask(1, 400))

	assert.Equal(t, quant.Cents(500), h.Cash)
	assert.Equal(t, quant.Units(3), h.Position(1).UnitsAvailable)
}

func TestCombinationFeasible_Empty(t *testing.T) {
	h := holdingsWith(10000, map[int]int64{1: 5})
	assert.False(t, CombinationFeasible(h, nil))
	assert.False(t, CombinationFeasible(h, []domain.Order{}))
}

func TestCombinationFeasible_AggregateCash(t *testing.T) {
	h := holdingsWith(300, nil)

	a := ask(1, 240)
	b := ask(2, 240)
	assert.True(t, CombinationFeasible(h, []domain.Order{a}))
	assert.True(t, CombinationFeasible(h, []domain.Order{b}))
	assert.False(t, CombinationFeasible(h, []domain.Order{a, b}),
		"legs that are affordable alone can still overdraw together")
}

func TestCombinationFeasible_NoInterimCredits(t *testing.T) {
	// Selling into the bid would raise more than the ask costs, but
	// sale proceeds are not spendable within the same combination.
	h := holdingsWith(0, map[int]int64{1: 1})

	legs := []domain.Order{bid(1, 500), ask(2, 100)}
	assert.False(t, CombinationFeasible(h, legs))
}

func TestCombinationFeasible_InventoryPerSecurity(t *testing.T) {
	h := holdingsWith(10000, map[int]int64{1: 1})

	assert.True(t, CombinationFeasible(h, []domain.Order{bid(1, 200)}))
	assert.False(t, CombinationFeasible(h, []domain.Order{bid(1, 200), bid(2, 200)}),
		"every leg's inventory must be coverable")
}

func TestCombinationFeasible_DoesNotMutateHoldings(t *testing.T) {
	h := holdingsWith(300, map[int]int64{1: 2})

	CombinationFeasible(h, []domain.Order{bid(1, 200), ask(2, 250)})

	assert.Equal(t, quant.Cents(300), h.Cash)
	assert.Equal(t, quant.Units(2), h.Position(1).UnitsAvailable)
	_, held := h.Positions[2]
	assert.False(t, held, "scratch map must not leak new positions")
}
