package monitoring

import (
	"context"
	"fmt"
	"time"

	"meetrelay/pkg/circuitbreaker"
)

// AddStoreCheck reports the meeting store unhealthy when ping fails.
func (h *HealthChecker) AddStoreCheck(ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck("meeting_store", ping, timeout)
}

// AddBreakerCheck reports unhealthy while the store circuit breaker is open.
func (h *HealthChecker) AddBreakerCheck(state func() circuitbreaker.State) {
	h.AddCheck("store_circuit_breaker", func(ctx context.Context) error {
		if s := state(); s == circuitbreaker.StateOpen {
			return fmt.Errorf("circuit breaker is %s", s)
		}
		return nil
	}, time.Second)
}
