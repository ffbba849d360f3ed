package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/internal/storage"
)

// Sequencer is the core single-threaded event processor. Every input
// to the decision loop goes through its inbox, is journaled, and is
// dispatched to the handler in strict sequence order.
type Sequencer struct {
	inbox   chan event.Event
	nextSeq uint64
	store   *storage.EventStore

	handler Handler
	logger  *zap.Logger
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, store *storage.EventStore, handler Handler, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		inbox:   make(chan event.Event, inboxSize),
		nextSeq: 1,
		store:   store,
		handler: handler,
		logger:  logger,
	}
}

// RecoverFromWAL restores state by replaying all events from WAL.
// This is the core of "Backtest is Reality" - same code path for live and replay.
func (s *Sequencer) RecoverFromWAL(ctx context.Context) error {
	if s.store == nil {
		s.logger.Info("No store configured, starting fresh")
		return nil
	}

	// Get last sequence number from WAL
	lastSeq, err := s.store.GetLastSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last seq: %w", err)
	}

	if lastSeq == 0 {
		s.logger.Info("WAL is empty, starting fresh")
		return nil
	}

	// Load all events from WAL
	events, err := s.store.LoadEvents(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	s.logger.Info("Replaying events from WAL", zap.Int("count", len(events)))

	// Replay each event using the same code path as live
	for _, ev := range events {
		s.ReplayEvent(ev)
	}

	s.logger.Info("State recovered from WAL", zap.Uint64("next_seq", s.nextSeq))
	return nil
}

// ValidateSequence checks for gaps based on strictness policy.
func (s *Sequencer) ValidateSequence(evSeq uint64) {
	expected := s.nextSeq
	if evSeq == expected {
		return
	}

	diff := int64(evSeq) - int64(expected)

	// Case 1: Replay/Duplicate (Old event)
	if diff < 0 {
		s.logger.Warn("SEQUENCE_DUPLICATE_IGNORED",
			zap.Uint64("expected", expected), zap.Uint64("got", evSeq))
		return
	}

	// Case 2: Future Gap
	if diff > 0 {
		// Small gaps are tolerated for availability. Market updates are
		// full snapshots, so a skipped event heals at the next refresh.
		if diff <= 10 {
			s.logger.Warn("SEQUENCE_GAP_TOLERATED",
				zap.Uint64("expected", expected),
				zap.Uint64("got", evSeq),
				zap.Int64("gap", diff))

			s.nextSeq = evSeq
			return
		}

		// Hard Panic for large gaps
		panic(fmt.Sprintf("SEQUENCE_GAP_FATAL: expected %d, got %d", expected, evSeq))
	}
}

// Inbox returns the event channel. External workers send events here.
func (s *Sequencer) Inbox() chan<- event.Event {
	return s.inbox
}

// SetHandler installs the event handler. The venue needs the inbox and
// the handler needs the venue, so wire-up happens in two steps; the
// handler must be in place before Run or RecoverFromWAL.
func (s *Sequencer) SetHandler(h Handler) {
	s.handler = h
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	s.logger.Info("Sequencer started (Single-Thread Hotpath)")

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", zap.Any("panic", r))
			s.DumpState("panic_dump.json")
			// Halt after dump; restarting with inconsistent state trades real money badly.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Sequencer) processEvent(ev event.Event) {
	// 1. Sequence Gap Check (with Tolerance Policy)
	s.ValidateSequence(ev.GetSeq())

	// 2. WAL-first: Persistence
	if s.store != nil {
		if err := s.store.SaveEvent(context.Background(), ev); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	// 3. Logic Dispatch
	s.dispatch(ev)

	// 4. Increment Sequence
	s.nextSeq++
}

// ReplayEvent processes an event synchronously without WAL logging.
// This is used exclusively by recovery and the replayer.
func (s *Sequencer) ReplayEvent(ev event.Event) {
	// Replay must still respect sequence order
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	// Dispatch without WAL
	s.dispatch(ev)

	s.nextSeq++
}

func (s *Sequencer) dispatch(ev event.Event) {
	if s.handler == nil {
		return
	}

	switch e := ev.(type) {
	case *event.MarketUpdateEvent:
		s.handler.OnMarketUpdate(e)
		event.ReleaseMarketUpdateEvent(e)
	case *event.HoldingsUpdateEvent:
		s.handler.OnHoldingsUpdate(e)
	case *event.OrderAcceptedEvent:
		s.handler.OnOrderAccepted(e)
	case *event.OrderRejectedEvent:
		s.handler.OnOrderRejected(e)
	case *event.SessionUpdateEvent:
		s.handler.OnSessionUpdate(e)
	case *event.TimerTickEvent:
		s.handler.OnTimerTick(e)
	default:
		s.logger.Warn("Unknown event type", zap.Stringer("type", ev.GetType()))
	}
}

// GetNextSeq returns the next expected sequence number.
func (s *Sequencer) GetNextSeq() uint64 {
	return s.nextSeq
}

// ProcessEventForTest feeds one event through the full live path
// without going through the inbox. Test hook only.
func (s *Sequencer) ProcessEventForTest(ev event.Event) {
	s.processEvent(ev)
}

// DumpState writes engine and handler state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	s.logger.Info("Dumping internal state...", zap.String("file", filename))

	data := struct {
		NextSeq uint64      `json:"next_seq"`
		Handler interface{} `json:"handler,omitempty"`
	}{
		NextSeq: s.nextSeq,
	}
	if d, ok := s.handler.(StateDumper); ok {
		data.Handler = d.DumpState()
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal state", zap.Error(err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		s.logger.Error("Failed to write state dump", zap.Error(err))
	}
}
