package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"meetrelay/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fixedStats struct{ conns, rooms int }

func (s fixedStats) Stats() (int, int) { return s.conns, s.rooms }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var storeErr error
	checker := monitoring.NewHealthChecker()
	checker.AddStoreCheck(func(ctx context.Context) error { return storeErr }, time.Second)

	router := gin.New()
	NewHealthHandler(checker, fixedStats{conns: 3, rooms: 1}).SetupRoutes(router)

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["connections"])
	assert.Equal(t, float64(1), body["rooms"])

	w = do(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	storeErr = errors.New("dial tcp: connection refused")
	w = do(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, monitoring.StatusUnhealthy, decode(t, w)["status"])

	// liveness ignores the store
	w = do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
