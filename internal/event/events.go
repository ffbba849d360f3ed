package event

import (
	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// Type defines the type of event.
type Type uint16

const (
	EvMarketUpdate Type = iota + 1
	EvHoldingsUpdate
	EvOrderAccepted
	EvOrderRejected
	EvSessionUpdate
	EvTimerTick
)

func (t Type) String() string {
	switch t {
	case EvMarketUpdate:
		return "market_update"
	case EvHoldingsUpdate:
		return "holdings_update"
	case EvOrderAccepted:
		return "order_accepted"
	case EvOrderRejected:
		return "order_rejected"
	case EvSessionUpdate:
		return "session_update"
	case EvTimerTick:
		return "timer_tick"
	default:
		return "unknown"
	}
}

// Event is the interface for all sequencer events.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64         { return e.Seq }
func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// MarketUpdateEvent carries the full order snapshot across all markets,
// exactly as the venue reported it. The agent's own orders are included
// with Mine set.
type MarketUpdateEvent struct {
	BaseEvent
	Orders []domain.Order `json:"orders"`
}

func (e MarketUpdateEvent) GetType() Type { return EvMarketUpdate }

// HoldingsUpdateEvent carries the venue-confirmed account state. This
// is the only input that mutates live holdings.
type HoldingsUpdateEvent struct {
	BaseEvent
	Cash          quant.Cents             `json:"cash"`
	CashAvailable quant.Cents             `json:"cash_available"`
	Positions     map[int]domain.Position `json:"positions"`
}

func (e HoldingsUpdateEvent) GetType() Type { return EvHoldingsUpdate }

// OrderAcceptedEvent confirms one of our submissions reached the book.
type OrderAcceptedEvent struct {
	BaseEvent
	Order domain.Order `json:"order"`
}

func (e OrderAcceptedEvent) GetType() Type { return EvOrderAccepted }

// OrderRejectedEvent reports one of our submissions was refused.
type OrderRejectedEvent struct {
	BaseEvent
	Order  domain.Order `json:"order"`
	Reason string       `json:"reason"`
}

func (e OrderRejectedEvent) GetType() Type { return EvOrderRejected }

// SessionUpdateEvent reports the trading session opening or closing.
type SessionUpdateEvent struct {
	BaseEvent
	Open bool `json:"open"`
}

func (e SessionUpdateEvent) GetType() Type { return EvSessionUpdate }

// TimerTickEvent is posted by the idle timer so that housekeeping runs
// on the sequencer goroutine like every other decision.
type TimerTickEvent struct {
	BaseEvent
}

func (e TimerTickEvent) GetType() Type { return EvTimerTick }
