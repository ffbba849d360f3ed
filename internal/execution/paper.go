package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/pkg/quant"
	"github.com/psj098/capmbot/pkg/safe"
)

// PaperVenue simulates the marketplace in process with virtual cash
// and holdings. It answers submissions the way the live venue does:
// through the event stream, never through the return value. Used for
// strategy validation before any order touches the real market.
type PaperVenue struct {
	inbox      chan<- event.Event
	seq        *uint64
	securities map[int]domain.Security
	logger     *zap.Logger

	mu       sync.Mutex
	holdings *domain.Holdings
	resting  []domain.Order // open orders only, ours and competing
}

// NewPaperVenue creates a paper venue over the given account state.
// The venue takes ownership of holdings; it is the authoritative copy
// and the agent rebuilds its own from the emitted events.
func NewPaperVenue(inbox chan<- event.Event, seq *uint64, securities map[int]domain.Security, holdings *domain.Holdings, logger *zap.Logger) *PaperVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperVenue{
		inbox:      inbox,
		seq:        seq,
		securities: securities,
		logger:     logger,
		holdings:   holdings,
	}
}

// SeedBook injects competing resting orders. Call before Start; the
// opening market snapshot carries them.
func (p *PaperVenue) SeedBook(orders ...domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, o := range orders {
		o.Mine = false
		o.Status = domain.StatusNew
		if o.Type == "" {
			o.Type = domain.TypeLimit
		}
		p.resting = append(p.resting, o)
	}
}

// Start opens the simulated session: session open, the initial account
// state and the initial book, in that order.
func (p *PaperVenue) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("PAPER VENUE: session open",
		zap.Int64("cash_cents", int64(p.holdings.Cash)),
		zap.Int("securities", len(p.securities)),
		zap.Int("seeded_orders", len(p.resting)))

	p.post(ctx, &event.SessionUpdateEvent{BaseEvent: p.stamp(), Open: true})
	p.post(ctx, p.holdingsEventLocked())
	p.post(ctx, p.snapshotLocked())
	return nil
}

// SubmitOrder validates, reserves and rests or fills the order. Every
// outcome is reported as events; the error return is transport only.
func (p *PaperVenue) SubmitOrder(ctx context.Context, order domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if reason := p.validateLocked(order); reason != "" {
		p.logger.Warn("PAPER VENUE: order rejected",
			zap.String("ref", order.Ref),
			zap.String("reason", reason))
		order.Status = domain.StatusRejected
		p.post(ctx, &event.OrderRejectedEvent{BaseEvent: p.stamp(), Order: order, Reason: reason})
		return nil
	}

	order.Mine = true
	order.Status = domain.StatusNew
	order.CreatedUnixM = quant.TimeStamp(time.Now().UnixMicro())

	// Reserve before acceptance so the rejection path never touches
	// the account.
	if order.Side == domain.SideBuy {
		p.holdings.ReserveCash(cost(order.Price, order.Units))
	} else {
		p.holdings.ReserveUnits(order.SecurityID, order.Units)
	}

	p.post(ctx, &event.OrderAcceptedEvent{BaseEvent: p.stamp(), Order: order})

	p.matchLocked(&order)
	if order.Units > 0 {
		p.resting = append(p.resting, order)
	}

	p.post(ctx, p.snapshotLocked())
	p.post(ctx, p.holdingsEventLocked())

	p.logger.Info("PAPER VENUE: order processed",
		zap.String("ref", order.Ref),
		zap.Int("security", order.SecurityID),
		zap.String("side", string(order.Side)),
		zap.Int64("price_cents", int64(order.Price)),
		zap.String("status", order.Status))
	return nil
}

// CancelOrder withdraws one of our resting orders and releases its
// reserve.
func (p *PaperVenue) CancelOrder(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.resting {
		o := p.resting[i]
		if !o.Mine || o.Ref != ref {
			continue
		}

		if o.Side == domain.SideBuy {
			p.holdings.ReleaseCash(cost(o.Price, o.Units))
		} else {
			p.holdings.ReleaseUnits(o.SecurityID, o.Units)
		}
		p.resting = append(p.resting[:i], p.resting[i+1:]...)

		p.post(ctx, p.snapshotLocked())
		p.post(ctx, p.holdingsEventLocked())

		p.logger.Info("PAPER VENUE: order cancelled", zap.String("ref", ref))
		return nil
	}

	return fmt.Errorf("order not found: %s", ref)
}

// Close is a no-op; the simulated session lives as long as the process.
func (p *PaperVenue) Close() error {
	return nil
}

// validateLocked mirrors marketplace admission checks. Prices are
// whole cents inside the instrument bounds; the grid is not enforced
// beyond that.
func (p *PaperVenue) validateLocked(o domain.Order) string {
	sec, ok := p.securities[o.SecurityID]
	if !ok {
		return fmt.Sprintf("unknown security %d", o.SecurityID)
	}
	if o.Type != domain.TypeLimit {
		return fmt.Sprintf("unsupported order type %s", o.Type)
	}
	if o.Units <= 0 {
		return fmt.Sprintf("units must be positive, got %d", o.Units)
	}
	if o.Price < sec.MinPrice || o.Price > sec.MaxPrice {
		return fmt.Sprintf("price %d outside [%d, %d]", o.Price, sec.MinPrice, sec.MaxPrice)
	}
	if o.Side == domain.SideBuy {
		if p.holdings.CashAvailable < cost(o.Price, o.Units) {
			return fmt.Sprintf("insufficient cash: need %d, have %d",
				cost(o.Price, o.Units), p.holdings.CashAvailable)
		}
	} else {
		if p.holdings.Position(o.SecurityID).UnitsAvailable < o.Units {
			return fmt.Sprintf("insufficient units of security %d: need %d, have %d",
				o.SecurityID, o.Units, p.holdings.Position(o.SecurityID).UnitsAvailable)
		}
	}
	return ""
}

// matchLocked fills the incoming order against competing orders on the
// opposite side, best price first, at the resting price. Our own
// resting orders never match; self-crossing is not a trade.
func (p *PaperVenue) matchLocked(o *domain.Order) {
	for o.Units > 0 {
		idx := p.bestCounterLocked(o)
		if idx < 0 {
			return
		}
		c := &p.resting[idx]

		crossed := (o.Side == domain.SideBuy && c.Price <= o.Price) ||
			(o.Side == domain.SideSell && c.Price >= o.Price)
		if !crossed {
			return
		}

		fill := o.Units
		if c.Units < fill {
			fill = c.Units
		}
		p.settleLocked(o, c.Price, fill)

		o.Units -= fill
		c.Units -= fill
		if c.Units == 0 {
			p.resting = append(p.resting[:idx], p.resting[idx+1:]...)
		}
	}
	o.Status = domain.StatusFilled
}

// bestCounterLocked returns the index of the best competing order on
// the opposite side of the same security, or -1. Ties keep the first
// order seen.
func (p *PaperVenue) bestCounterLocked(o *domain.Order) int {
	best := -1
	for i := range p.resting {
		c := p.resting[i]
		if c.Mine || c.SecurityID != o.SecurityID || c.Side == o.Side {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if o.Side == domain.SideBuy && c.Price < p.resting[best].Price {
			best = i
		}
		if o.Side == domain.SideSell && c.Price > p.resting[best].Price {
			best = i
		}
	}
	return best
}

// settleLocked moves cash and units for a fill of our order. The buy
// reserve was taken at the limit price; a price improvement hands the
// difference back.
func (p *PaperVenue) settleLocked(o *domain.Order, fillPrice quant.Cents, units quant.Units) {
	if o.Side == domain.SideBuy {
		if fillPrice < o.Price {
			p.holdings.ReleaseCash(cost(o.Price-fillPrice, units))
		}
		p.holdings.DebitCash(cost(fillPrice, units))
		p.holdings.CreditUnits(o.SecurityID, units)
	} else {
		p.holdings.DebitUnits(o.SecurityID, units)
		p.holdings.CreditCash(cost(fillPrice, units))
	}
	p.holdings.VerifyInvariant()

	p.logger.Info("PAPER VENUE: fill",
		zap.String("ref", o.Ref),
		zap.Int("security", o.SecurityID),
		zap.String("side", string(o.Side)),
		zap.Int64("price_cents", int64(fillPrice)),
		zap.Int64("units", int64(units)))
}

func (p *PaperVenue) snapshotLocked() *event.MarketUpdateEvent {
	ev := event.AcquireMarketUpdateEvent()
	ev.BaseEvent = p.stamp()
	ev.Orders = append(ev.Orders, p.resting...)
	return ev
}

func (p *PaperVenue) holdingsEventLocked() *event.HoldingsUpdateEvent {
	positions := make(map[int]domain.Position, len(p.holdings.Positions))
	for id, pos := range p.holdings.Positions {
		positions[id] = pos
	}
	return &event.HoldingsUpdateEvent{
		BaseEvent:     p.stamp(),
		Cash:          p.holdings.Cash,
		CashAvailable: p.holdings.CashAvailable,
		Positions:     positions,
	}
}

func (p *PaperVenue) stamp() event.BaseEvent {
	return event.BaseEvent{
		Seq: quant.NextSeq(p.seq),
		Ts:  quant.TimeStamp(time.Now().UnixMicro()),
	}
}

// post delivers an event to the sequencer inbox. The inbox must be
// sized to absorb the events of one decision cycle; posting from
// inside a handler on a full inbox would deadlock the loop.
func (p *PaperVenue) post(ctx context.Context, ev event.Event) {
	select {
	case p.inbox <- ev:
	case <-ctx.Done():
	}
}

func cost(price quant.Cents, units quant.Units) quant.Cents {
	return quant.Cents(safe.SafeMul(int64(price), int64(units)))
}
