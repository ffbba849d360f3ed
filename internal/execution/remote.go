package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/infra"
)

// RemoteVenue routes orders to the live marketplace over the websocket
// gateway. Submissions pass a circuit breaker and a rate limiter so a
// failing or throttling venue degrades into inaction instead of a
// reconnect storm of rejected spam.
type RemoteVenue struct {
	gateway *infra.Gateway
	limiter *infra.RateLimiter
	breaker *infra.CircuitBreaker
	logger  *zap.Logger
}

func NewRemoteVenue(gateway *infra.Gateway, limiter *infra.RateLimiter, breaker *infra.CircuitBreaker, logger *zap.Logger) *RemoteVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteVenue{
		gateway: gateway,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}
}

// Start connects the gateway; events begin flowing once the session
// handshake completes.
func (v *RemoteVenue) Start(ctx context.Context) error {
	v.gateway.Start(ctx)
	return nil
}

func (v *RemoteVenue) SubmitOrder(ctx context.Context, order domain.Order) error {
	if !v.breaker.Allow() {
		return fmt.Errorf("EXECUTION_HALTED: circuit breaker open, dropping order %s", order.Ref)
	}
	v.limiter.Wait()

	if err := v.gateway.SendOrder(order); err != nil {
		v.breaker.RecordFailure()
		return fmt.Errorf("submit order %s: %w", order.Ref, err)
	}
	v.breaker.RecordSuccess()
	return nil
}

func (v *RemoteVenue) CancelOrder(ctx context.Context, ref string) error {
	if !v.breaker.Allow() {
		return fmt.Errorf("EXECUTION_HALTED: circuit breaker open, dropping cancel %s", ref)
	}
	v.limiter.Wait()

	if err := v.gateway.SendCancel(ref); err != nil {
		v.breaker.RecordFailure()
		return fmt.Errorf("cancel order %s: %w", ref, err)
	}
	v.breaker.RecordSuccess()
	return nil
}

func (v *RemoteVenue) Close() error {
	v.gateway.Stop()
	return nil
}
