// Package strategy implements the risk-adjusted decision loop: take an
// improving trade combination when the book offers one, quote as a
// passive market maker late in the session, and otherwise stay flat.
package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/book"
	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/internal/execution"
	"github.com/psj098/capmbot/internal/infra"
	"github.com/psj098/capmbot/internal/risk"
	"github.com/psj098/capmbot/internal/search"
)

// Phase tracks where the agent is in the submit/confirm cycle. Both
// decision paths gate on PhaseIdle, so at most one submission batch is
// in flight at a time.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConfirmation
	PhaseMakerCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case PhaseMakerCooldown:
		return "MAKER_COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// Config carries the strategy knobs.
type Config struct {
	Mode               string  // metric label only, paper or live
	RiskPenalty        float64 // variance weight in the score
	SessionDuration    time.Duration
	MakerStartFraction float64       // maker wakes after this share of the session
	OrderCooldown      time.Duration // minimum gap since the last order before quoting
	IdleOrderMaxAge    time.Duration // own resting orders older than this get pulled
}

// ConfigFrom maps the application configuration onto strategy knobs.
func ConfigFrom(cfg *infra.Config) Config {
	return Config{
		Mode:               strings.ToLower(cfg.Trading.Mode),
		RiskPenalty:        cfg.Risk.Penalty,
		SessionDuration:    time.Duration(cfg.Session.DurationMinutes) * time.Minute,
		MakerStartFraction: cfg.Session.MakerStartFraction,
		OrderCooldown:      time.Duration(cfg.Session.OrderCooldownMS) * time.Millisecond,
		IdleOrderMaxAge:    time.Duration(cfg.Session.IdleOrderMaxAgeSec) * time.Second,
	}
}

// Agent is the decision engine. It is stateful and single-threaded:
// the sequencer invokes one handler at a time, so no field needs a
// lock.
type Agent struct {
	cfg     Config
	venue   execution.Venue
	ledger  *execution.Ledger
	metrics *infra.Metrics
	logger  *zap.Logger

	securities map[int]domain.Security
	model      *risk.Model
	scorer     *risk.Scorer

	holdings     *domain.Holdings
	orders       []domain.Order // latest full snapshot, own copy
	best         map[int]book.Best
	currentScore float64

	phase        Phase
	phaseSince   time.Time
	processed    map[string]struct{} // economic keys of every order ever sent
	sessionOpen  bool
	sessionStart time.Time
	lastOrderAt  time.Time

	// Injected so tests control time and the maker's side bias.
	now      func() time.Time
	sideBias func() domain.Side
}

// NewAgent builds the engine over a fixed security set. A payoff table
// with mismatched state counts or a broken price grid is a fatal
// configuration error.
func NewAgent(cfg Config, securities map[int]domain.Security, venue execution.Venue, ledger *execution.Ledger, metrics *infra.Metrics, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	list := make([]domain.Security, 0, len(securities))
	for _, s := range securities {
		if s.Tick <= 0 || s.MinPrice >= s.MaxPrice {
			return nil, fmt.Errorf("security %d (%s): invalid price grid [%d, %d] tick %d",
				s.ID, s.Item, s.MinPrice, s.MaxPrice, s.Tick)
		}
		list = append(list, s)
	}
	model, err := risk.NewModel(list)
	if err != nil {
		return nil, fmt.Errorf("risk model: %w", err)
	}

	a := &Agent{
		cfg:        cfg,
		venue:      venue,
		ledger:     ledger,
		metrics:    metrics,
		logger:     logger,
		securities: securities,
		model:      model,
		scorer:     risk.NewScorer(model, cfg.RiskPenalty),
		holdings:   domain.NewHoldings(),
		best:       make(map[int]book.Best),
		processed:  make(map[string]struct{}),
		now:        time.Now,
	}
	a.sideBias = func() domain.Side {
		if rand.Intn(2) == 0 {
			return domain.SideSell
		}
		return domain.SideBuy
	}

	a.logger.Info("Agent initialized",
		zap.Int("securities", len(securities)),
		zap.Int("states", model.States()),
		zap.Float64("risk_penalty", cfg.RiskPenalty))
	return a, nil
}

// OnMarketUpdate ingests a book snapshot and runs both decision paths.
// The event may be pooled, so the snapshot is copied out first. The
// maker goes before the reactive path, matching the session loop: a
// passive quote this cycle blocks the taker until it is confirmed.
func (a *Agent) OnMarketUpdate(ev *event.MarketUpdateEvent) {
	a.orders = append(a.orders[:0], ev.Orders...)
	a.best = book.Reduce(a.orders)
	a.currentScore = a.scorer.Score(a.holdings.Cash, a.holdings.UnitsByID())

	a.maybeQuote()
	a.maybeRebalance()
}

// OnHoldingsUpdate replaces the account state with the venue-confirmed
// snapshot and reprices the portfolio.
func (a *Agent) OnHoldingsUpdate(ev *event.HoldingsUpdateEvent) {
	h := domain.NewHoldings()
	h.Cash = ev.Cash
	h.CashAvailable = ev.CashAvailable
	for id, p := range ev.Positions {
		h.Positions[id] = p
	}
	a.holdings = h

	units := h.UnitsByID()
	variance := a.model.PortfolioVariance(units)
	a.currentScore = a.scorer.Score(h.Cash, units)

	a.logger.Info("Holdings updated",
		zap.Int64("cash_cents", int64(h.Cash)),
		zap.Int64("cash_available_cents", int64(h.CashAvailable)),
		zap.Float64("portfolio_variance", variance),
		zap.Float64("performance", a.currentScore))

	a.metrics.SetPerformance(a.currentScore)
	a.metrics.SetPortfolioVariance(variance)
}

// OnOrderAccepted books the confirmation and unlocks the next decision.
func (a *Agent) OnOrderAccepted(ev *event.OrderAcceptedEvent) {
	a.logger.Info("Order accepted",
		zap.String("ref", ev.Order.Ref),
		zap.Int("security", ev.Order.SecurityID),
		zap.String("side", string(ev.Order.Side)),
		zap.Int64("price_cents", int64(ev.Order.Price)))

	if a.ledger != nil {
		a.ledger.Record(ev.Order)
	}
	a.metrics.RecordOutcome("accepted")
	a.setPhase(PhaseIdle)
}

// OnOrderRejected absorbs the rejection without retry; the next market
// update re-decides from fresh state.
func (a *Agent) OnOrderRejected(ev *event.OrderRejectedEvent) {
	a.logger.Warn("Order rejected",
		zap.String("ref", ev.Order.Ref),
		zap.String("reason", ev.Reason))

	a.metrics.RecordOutcome("rejected")
	a.setPhase(PhaseIdle)
}

// OnSessionUpdate tracks the session flag and restarts the clock; the
// maker window is measured from the latest session message.
func (a *Agent) OnSessionUpdate(ev *event.SessionUpdateEvent) {
	a.sessionOpen = ev.Open
	a.sessionStart = a.now()
	a.logger.Info("Session update", zap.Bool("open", ev.Open))
}

// OnTimerTick cancels our resting orders that have gone stale, so a
// partial fill on an outdated price cannot sneak in, and clears a
// phase whose confirmation never arrived.
func (a *Agent) OnTimerTick(ev *event.TimerTickEvent) {
	if !a.sessionOpen {
		return
	}
	now := a.now()

	for i := range a.orders {
		o := a.orders[i]
		if !o.Mine || !o.IsOpen() {
			continue
		}
		age := now.Sub(time.UnixMicro(int64(o.CreatedUnixM)))
		if age < a.cfg.IdleOrderMaxAge {
			continue
		}
		a.logger.Info("Order is idle, cancelling",
			zap.String("ref", o.Ref),
			zap.Duration("age", age))
		if err := a.venue.CancelOrder(context.Background(), o.Ref); err != nil {
			a.logger.Warn("Cancel failed", zap.String("ref", o.Ref), zap.Error(err))
			continue
		}
		a.metrics.RecordOutcome("cancelled")
	}

	if a.phase != PhaseIdle && now.Sub(a.phaseSince) >= a.cfg.IdleOrderMaxAge {
		a.logger.Warn("Clearing stuck phase",
			zap.Stringer("phase", a.phase),
			zap.Duration("stuck_for", now.Sub(a.phaseSince)))
		a.setPhase(PhaseIdle)
	}
}

// maybeRebalance submits the best improving combination, flipped to
// our side, one unit per leg.
func (a *Agent) maybeRebalance() {
	if a.phase != PhaseIdle || a.hasPendingOrder() {
		return
	}

	cands := book.Candidates(a.best)
	result, ok := search.Best(cands, a.holdings, a.scorer, a.currentScore)
	if !ok {
		a.metrics.RecordDecision("hold")
		return
	}

	a.logger.Info("Portfolio not optimal, trading combination",
		zap.Int("legs", len(result.Legs)),
		zap.Float64("current", a.currentScore),
		zap.Float64("target", result.Score))

	sent := 0
	for _, leg := range result.Legs {
		order := domain.Order{
			Ref:        uuid.NewString(),
			SecurityID: leg.SecurityID,
			Side:       leg.Side.Opposite(),
			Type:       domain.TypeLimit,
			Price:      leg.Price,
			Units:      1,
			Mine:       true,
		}
		if a.submit(order) {
			sent++
		}
	}
	if sent > 0 {
		a.metrics.RecordDecision("rebalance")
		a.metrics.ObserveCombinationLegs(sent)
		a.setPhase(PhaseAwaitingConfirmation)
	}
}

// submit routes one order unless an identical one already went out
// this session. Every routed order advances the cooldown clock.
func (a *Agent) submit(order domain.Order) bool {
	key := order.Key()
	if _, dup := a.processed[key]; dup {
		a.logger.Debug("Skipping already-processed order", zap.String("key", key))
		return false
	}
	a.processed[key] = struct{}{}

	if err := a.venue.SubmitOrder(context.Background(), order); err != nil {
		a.logger.Error("Order submission failed",
			zap.String("ref", order.Ref), zap.Error(err))
		return false
	}

	a.lastOrderAt = a.now()
	a.metrics.RecordOrder(a.cfg.Mode, string(order.Side))
	return true
}

// hasPendingOrder reports whether any of our orders is still resting
// in the latest snapshot.
func (a *Agent) hasPendingOrder() bool {
	for i := range a.orders {
		if a.orders[i].Mine && a.orders[i].IsOpen() {
			a.logger.Debug("Status: order is pending")
			return true
		}
	}
	return false
}

func (a *Agent) setPhase(p Phase) {
	if a.phase == p {
		return
	}
	a.logger.Debug("Phase transition",
		zap.Stringer("from", a.phase), zap.Stringer("to", p))
	a.phase = p
	a.phaseSince = a.now()
}

// Performance returns the latest computed portfolio score.
func (a *Agent) Performance() float64 {
	return a.currentScore
}

// Holdings returns the live account state. Callers must not mutate it.
func (a *Agent) Holdings() *domain.Holdings {
	return a.holdings
}

// CurrentPhase returns the decision phase the agent is in.
func (a *Agent) CurrentPhase() Phase {
	return a.phase
}

// DumpState implements the panic escrow hook: enough state to explain
// what the agent thought it was doing when the loop halted.
func (a *Agent) DumpState() interface{} {
	return map[string]interface{}{
		"phase":          a.phase.String(),
		"session_open":   a.sessionOpen,
		"current_score":  a.currentScore,
		"cash_cents":     int64(a.holdings.Cash),
		"positions":      a.holdings.Positions,
		"open_orders":    len(a.orders),
		"processed_keys": len(a.processed),
	}
}
