package http

import (
	"net/http"

	"meetrelay/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// RelayStats reports live relay load for the health endpoint.
type RelayStats interface {
	Stats() (connections, rooms int)
}

type HealthHandler struct {
	checker *monitoring.HealthChecker
	relay   RelayStats
}

func NewHealthHandler(checker *monitoring.HealthChecker, relay RelayStats) *HealthHandler {
	return &HealthHandler{checker: checker, relay: relay}
}

func (h *HealthHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health is a liveness probe and never consults the store.
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": monitoring.StatusHealthy}
	if h.relay != nil {
		conns, rooms := h.relay.Stats()
		body["connections"] = conns
		body["rooms"] = rooms
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
