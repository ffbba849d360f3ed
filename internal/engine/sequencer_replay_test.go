package engine

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/internal/storage"
	"github.com/psj098/capmbot/pkg/quant"
)

// recordingHandler captures the dispatched stream so two runs can be
// compared for determinism.
type recordingHandler struct {
	marketSizes []int
	cash        quant.Cents
	accepted    []string
	rejected    []string
	sessionOpen bool
	ticks       int
}

func (r *recordingHandler) OnMarketUpdate(ev *event.MarketUpdateEvent) {
	r.marketSizes = append(r.marketSizes, len(ev.Orders))
}

func (r *recordingHandler) OnHoldingsUpdate(ev *event.HoldingsUpdateEvent) {
	r.cash = ev.Cash
}

func (r *recordingHandler) OnOrderAccepted(ev *event.OrderAcceptedEvent) {
	r.accepted = append(r.accepted, ev.Order.Ref)
}

func (r *recordingHandler) OnOrderRejected(ev *event.OrderRejectedEvent) {
	r.rejected = append(r.rejected, ev.Order.Ref)
}

func (r *recordingHandler) OnSessionUpdate(ev *event.SessionUpdateEvent) {
	r.sessionOpen = ev.Open
}

func (r *recordingHandler) OnTimerTick(*event.TimerTickEvent) {
	r.ticks++
}

// TestSequencer_Replay_EmptyWAL tests replay with no events.
func TestSequencer_Replay_EmptyWAL(t *testing.T) {
	tempDB := t.TempDir() + "/test_empty.db"
	defer os.Remove(tempDB)

	store, err := storage.NewEventStore(tempDB)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	sequencer := NewSequencer(100, store, nil, nil)

	// Should not error on empty WAL
	if err := sequencer.RecoverFromWAL(ctx); err != nil {
		t.Fatalf("RecoverFromWAL failed on empty WAL: %v", err)
	}

	// nextSeq should be 1 (starting value)
	if sequencer.GetNextSeq() != 1 {
		t.Errorf("expected nextSeq=1, got %d", sequencer.GetNextSeq())
	}
}

// TestSequencer_Replay_Deterministic feeds a mixed event stream through
// a live sequencer, then replays the WAL into a fresh one and requires
// the handler to observe an identical stream.
func TestSequencer_Replay_Deterministic(t *testing.T) {
	tempDB := t.TempDir() + "/test_replay.db"
	defer os.Remove(tempDB)

	store, err := storage.NewEventStore(tempDB)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	live := &recordingHandler{}
	sequencer1 := NewSequencer(100, store, live, nil)

	market := event.AcquireMarketUpdateEvent()
	market.Seq = 1
	market.Ts = quant.TimeStamp(1704067200000000)
	market.Orders = append(market.Orders,
		domain.Order{Ref: "r1", SecurityID: 1, Side: domain.SideSell, Type: domain.TypeLimit, Price: 240, Units: 1, Status: domain.StatusNew},
		domain.Order{Ref: "r2", SecurityID: 2, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 260, Units: 1, Status: domain.StatusNew},
	)
	sequencer1.ProcessEventForTest(market)

	sequencer1.ProcessEventForTest(&event.HoldingsUpdateEvent{
		BaseEvent: event.BaseEvent{Seq: 2, Ts: 2000},
		Cash:      10000,
		Positions: map[int]domain.Position{1: {SecurityID: 1, Units: 2, UnitsAvailable: 2}},
	})
	sequencer1.ProcessEventForTest(&event.SessionUpdateEvent{
		BaseEvent: event.BaseEvent{Seq: 3, Ts: 3000},
		Open:      true,
	})
	sequencer1.ProcessEventForTest(&event.OrderAcceptedEvent{
		BaseEvent: event.BaseEvent{Seq: 4, Ts: 4000},
		Order:     domain.Order{Ref: "mine-1", SecurityID: 1, Side: domain.SideBuy, Mine: true},
	})
	sequencer1.ProcessEventForTest(&event.TimerTickEvent{
		BaseEvent: event.BaseEvent{Seq: 5, Ts: 5000},
	})

	// Replay into a fresh sequencer
	replayed := &recordingHandler{}
	sequencer2 := NewSequencer(100, store, replayed, nil)
	if err := sequencer2.RecoverFromWAL(ctx); err != nil {
		t.Fatalf("RecoverFromWAL failed: %v", err)
	}

	if !reflect.DeepEqual(live, replayed) {
		t.Errorf("replayed stream differs:\nlive:     %+v\nreplayed: %+v", live, replayed)
	}

	if sequencer1.GetNextSeq() != sequencer2.GetNextSeq() {
		t.Errorf("nextSeq mismatch: live=%d, replayed=%d",
			sequencer1.GetNextSeq(), sequencer2.GetNextSeq())
	}
}

func TestSequencer_ValidateSequence(t *testing.T) {
	s := NewSequencer(1, nil, nil, nil)

	// Duplicate (old) events are ignored
	s.nextSeq = 5
	s.ValidateSequence(3)
	if s.GetNextSeq() != 5 {
		t.Errorf("duplicate should not move nextSeq, got %d", s.GetNextSeq())
	}

	// Small gaps fast-forward
	s.ValidateSequence(9)
	if s.GetNextSeq() != 9 {
		t.Errorf("expected fast-forward to 9, got %d", s.GetNextSeq())
	}

	// Large gaps halt
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for large gap")
		}
	}()
	s.ValidateSequence(100)
}

func TestSequencer_ReplayGapPanics(t *testing.T) {
	s := NewSequencer(1, nil, nil, nil)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for replay gap")
		}
	}()
	s.ReplayEvent(&event.TimerTickEvent{BaseEvent: event.BaseEvent{Seq: 7}})
}
