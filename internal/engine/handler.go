package engine

import (
	"github.com/psj098/capmbot/internal/event"
)

// Handler receives sequenced events exactly once, in order, on the
// sequencer goroutine. Implementations own all mutable trading state.
// Events may be pooled; handlers must copy anything they keep.
type Handler interface {
	OnMarketUpdate(*event.MarketUpdateEvent)
	OnHoldingsUpdate(*event.HoldingsUpdateEvent)
	OnOrderAccepted(*event.OrderAcceptedEvent)
	OnOrderRejected(*event.OrderRejectedEvent)
	OnSessionUpdate(*event.SessionUpdateEvent)
	OnTimerTick(*event.TimerTickEvent)
}

// StateDumper is implemented by handlers that can serialize their state
// for post-mortem dumps.
type StateDumper interface {
	DumpState() interface{}
}
