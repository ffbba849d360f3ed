package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/engine"
	"github.com/psj098/capmbot/internal/storage"
)

// Replayer feeds a recorded session journal back through a sequencer.
// The handler sees the exact event order of the original run, so every
// decision the strategy takes is reproducible offline.
type Replayer struct {
	store  *storage.EventStore
	logger *zap.Logger
}

// NewReplayer opens the journal at dbPath for replay.
func NewReplayer(dbPath string, logger *zap.Logger) (*Replayer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewEventStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Replayer{store: store, logger: logger}, nil
}

// RunReplay pushes every journaled event through the sequencer in
// order and returns the count. Replay bypasses the WAL write path, so
// the source journal stays intact.
func (r *Replayer) RunReplay(ctx context.Context, seq *engine.Sequencer) (int, error) {
	events, err := r.store.LoadEvents(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}

	r.logger.Info("Replaying journal", zap.Int("events", len(events)))

	for _, ev := range events {
		seq.ReplayEvent(ev)
	}

	return len(events), nil
}

// Close releases the journal handle.
func (r *Replayer) Close() error {
	return r.store.Close()
}
