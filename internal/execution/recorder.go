package execution

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
)

// RecorderVenue accepts everything and remembers it. The replay
// harness runs the decision loop against journaled events with this
// venue, so recomputed orders can be inspected without anything
// reaching a marketplace.
type RecorderVenue struct {
	logger *zap.Logger

	mu        sync.Mutex
	submitted []domain.Order
	cancelled []string
}

func NewRecorderVenue(logger *zap.Logger) *RecorderVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecorderVenue{logger: logger}
}

func (r *RecorderVenue) Start(ctx context.Context) error {
	return nil
}

func (r *RecorderVenue) SubmitOrder(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.submitted = append(r.submitted, order)
	r.logger.Info("RECORDER: submit order",
		zap.String("ref", order.Ref),
		zap.Int("security", order.SecurityID),
		zap.String("side", string(order.Side)),
		zap.Int64("price_cents", int64(order.Price)),
		zap.Int64("units", int64(order.Units)))
	return nil
}

func (r *RecorderVenue) CancelOrder(ctx context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelled = append(r.cancelled, ref)
	r.logger.Info("RECORDER: cancel order", zap.String("ref", ref))
	return nil
}

func (r *RecorderVenue) Close() error {
	return nil
}

// Submitted returns a copy of every order routed here, in order.
func (r *RecorderVenue) Submitted() []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Order, len(r.submitted))
	copy(out, r.submitted)
	return out
}

// Cancelled returns a copy of every cancelled ref, in order.
func (r *RecorderVenue) Cancelled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.cancelled))
	copy(out, r.cancelled)
	return out
}
