package strategy

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/book"
	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/search"
	"github.com/psj098/capmbot/pkg/quant"
)

// maybeQuote runs the market-maker path. Late in the session, when the
// reactive flow has gone quiet, post one improving quote per security
// inside the spread, providing liquidity instead of taking it.
func (a *Agent) maybeQuote() {
	if !a.sessionOpen {
		return
	}
	now := a.now()

	window := time.Duration(a.cfg.MakerStartFraction * float64(a.cfg.SessionDuration))
	if now.Sub(a.sessionStart) <= window {
		return
	}
	// A session with no orders yet has nothing to cool down from.
	if !a.lastOrderAt.IsZero() && now.Sub(a.lastOrderAt) < a.cfg.OrderCooldown {
		return
	}
	if a.phase != PhaseIdle || a.hasPendingOrder() {
		return
	}

	a.logger.Info("Market maker activated")

	sent := 0
	for _, id := range a.model.IDs() {
		sec := a.securities[id]

		first, second := ladders(sec, a.best[id], a.sideBias())
		order, ok := a.walk(first)
		if !ok {
			order, ok = a.walk(second)
		}
		if !ok {
			continue
		}
		if a.submit(order) {
			sent++
		}
	}
	if sent > 0 {
		a.logger.Info("Market maker quoted", zap.Int("orders", sent))
		a.metrics.RecordDecision("maker")
		a.setPhase(PhaseMakerCooldown)
	}
}

// ladder is one directed price walk: hypothetical book-side orders
// from the near price toward the far side, one tick at a time. The
// start is inclusive, the stop exclusive.
type ladder struct {
	securityID int
	side       domain.Side // side of the hypothetical resting order
	from, to   quant.Cents
	step       quant.Cents // signed
}

// ladders builds the primary and fallback walks for one security. A
// sell bias walks up from the best bid testing buyers to sell to; a
// buy bias walks down from the best ask testing sellers to buy from.
// Where a side has no competing quote the instrument bound stands in.
func ladders(sec domain.Security, quotes book.Best, bias domain.Side) (ladder, ladder) {
	bidStart := sec.MinPrice + 1
	if quotes.Bid != nil {
		bidStart = quotes.Bid.Price
	}
	askStart := sec.MaxPrice - 1
	if quotes.Ask != nil {
		askStart = quotes.Ask.Price
	}

	up := ladder{securityID: sec.ID, side: domain.SideBuy, from: bidStart, to: askStart, step: sec.Tick}
	down := ladder{securityID: sec.ID, side: domain.SideSell, from: askStart, to: bidStart, step: -sec.Tick}

	if bias == domain.SideSell {
		return up, down
	}
	return down, up
}

// walk tests each rung with a hypothetical resting order: individually
// affordable, and scoring strictly above current once flipped to our
// side. The first qualifying rung wins.
func (a *Agent) walk(l ladder) (domain.Order, bool) {
	for price := l.from; beforeStop(price, l.to, l.step); price += l.step {
		hyp := domain.Order{
			SecurityID: l.securityID,
			Side:       l.side,
			Type:       domain.TypeLimit,
			Price:      price,
			Units:      1,
		}
		if !search.OrderFeasible(a.holdings, hyp) {
			continue
		}
		if search.PotentialScore(a.scorer, a.holdings, []domain.Order{hyp}) <= a.currentScore {
			continue
		}

		out := hyp
		out.Ref = uuid.NewString()
		out.Side = l.side.Opposite()
		out.Mine = true
		return out, true
	}
	return domain.Order{}, false
}

func beforeStop(price, to, step quant.Cents) bool {
	if step > 0 {
		return price < to
	}
	return price > to
}
