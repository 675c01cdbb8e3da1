package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/pkg/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.RoomOpened()
	c.MessageRelayed(domain.EventSendOffer)
	c.MessageDelivered(domain.EventReceiveOffer)
	c.DeliveryDropped("queue_full")
	c.JoinFailed("not_found")
	c.MeetingCreated()
	c.ObserveStoreOperation("get", 3*time.Millisecond, domain.ErrMeetingNotFound)
	c.ObserveStoreOperation("get", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesRelayed.WithLabelValues("send-offer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesDropped.WithLabelValues("queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.joinFailures.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.meetingsCreated))
	assert.Equal(t, 2, testutil.CollectAndCount(c.storeLatency))

	// a second collector on a fresh registry must not panic
	assert.NotPanics(t, func() { NewPrometheusCollector(prometheus.NewRegistry()) })
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddStoreCheck(func(ctx context.Context) error { return nil }, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["meeting_store"])
	assert.True(t, h.IsReady(context.Background()))

	state := circuitbreaker.StateOpen
	h.AddBreakerCheck(func() circuitbreaker.State { return state })

	status = h.CheckAll(context.Background())
	require.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["store_circuit_breaker"], "open")

	state = circuitbreaker.StateHalfOpen
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["slow"], "deadline")
}
