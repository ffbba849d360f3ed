package infra

import (
	"time"
)

const (
	reconnectBase = 1 * time.Second
	reconnectCap  = 15 * time.Second
)

// ReconnectDelay returns the exponential delay before the given retry
// attempt. Sessions run for minutes, not hours, so the cap stays low
// enough that a flaky link does not idle out a whole trading window.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		return reconnectBase
	}

	// 2^attempt, guarded before the shift can overflow.
	if attempt > 10 {
		return reconnectCap
	}

	delay := reconnectBase * time.Duration(1<<attempt)
	if delay > reconnectCap {
		return reconnectCap
	}
	return delay
}
