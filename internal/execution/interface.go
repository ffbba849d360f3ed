package execution

import (
	"context"

	"github.com/psj098/capmbot/internal/domain"
)

// Venue defines the interface for order routing. Implementations
// answer asynchronously: acceptance, rejection and the resulting book
// and holdings changes all arrive through the event stream.
type Venue interface {
	// Start brings the venue up and begins feeding events.
	Start(ctx context.Context) error

	// SubmitOrder sends a new limit order to the marketplace.
	SubmitOrder(ctx context.Context, order domain.Order) error

	// CancelOrder withdraws one of our resting orders by client ref.
	CancelOrder(ctx context.Context, ref string) error

	// Close releases venue resources.
	Close() error
}
