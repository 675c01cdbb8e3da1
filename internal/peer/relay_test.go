package peer

import (
	"net/http/httptest"
	"strings"
	"testing"

	"meetrelay/internal/core/services"
	handlers "meetrelay/internal/handlers/http"
	"meetrelay/internal/infrastructure/middleware"
	"meetrelay/internal/infrastructure/repositories/memory"
	"meetrelay/internal/infrastructure/signal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type testRelay struct {
	baseURL  string
	wsURL    string
	registry *signal.Registry
}

// newTestRelay serves the directory API and the signaling socket the way
// cmd/signal does, backed by the memory store.
func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	logger := zap.NewNop().Sugar()

	meetings := services.NewMeetingService(memory.NewMemoryMeetingRepository(), 12, 3)
	registry := signal.NewRegistry(meetings, nil, logger)
	ws := signal.NewWebSocketServer(registry, signal.NewBroadcaster(registry, nil, logger), signal.Options{}, nil, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	handlers.NewMeetingHandler(meetings, nil, logger).SetupRoutes(router)
	router.GET("/ws", gin.WrapF(ws.HandleWebSocket))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testRelay{
		baseURL:  srv.URL,
		wsURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		registry: registry,
	}
}
