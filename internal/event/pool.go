package event

import "sync"

// Market snapshots arrive every refresh and are by far the most
// frequent event, so they are pooled. The other event types are rare
// enough to allocate directly.
var marketUpdatePool = sync.Pool{
	New: func() interface{} { return &MarketUpdateEvent{} },
}

// AcquireMarketUpdateEvent returns a cleared snapshot event from the pool.
func AcquireMarketUpdateEvent() *MarketUpdateEvent {
	return marketUpdatePool.Get().(*MarketUpdateEvent)
}

// ReleaseMarketUpdateEvent resets the event and returns it to the pool.
// The Orders backing array is kept so steady-state snapshots reuse it.
func ReleaseMarketUpdateEvent(ev *MarketUpdateEvent) {
	ev.BaseEvent = BaseEvent{}
	ev.Orders = ev.Orders[:0]
	marketUpdatePool.Put(ev)
}

// Warmup pre-populates the pool so the first snapshots of a session do
// not allocate on the hot path.
func Warmup() {
	var evs [16]*MarketUpdateEvent
	for i := range evs {
		evs[i] = AcquireMarketUpdateEvent()
	}
	for _, ev := range evs {
		ReleaseMarketUpdateEvent(ev)
	}
}
