package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/pkg/tracing"
	"meetrelay/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options tunes the socket loop. Zero values fall back to DefaultOptions.
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendQueueSize  int
	MaxMessageSize int64

	// MessagesPerSecond limits inbound frames per connection; zero disables it.
	MessagesPerSecond float64
	Burst             int

	// AllowedOrigins restricts the Origin header when CheckOrigin is set.
	CheckOrigin    bool
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendQueueSize:  64,
		MaxMessageSize: 64 * 1024,
	}
}

type WebSocketServer struct {
	registry    *Registry
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	opts        Options
	metrics     Metrics
	logger      *zap.SugaredLogger
}

func NewWebSocketServer(registry *Registry, broadcaster *Broadcaster, opts Options, metrics Metrics, logger *zap.SugaredLogger) *WebSocketServer {
	defaults := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaults.PongTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaults.SendQueueSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}

	s := &WebSocketServer{
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		metrics:     orNoop(metrics),
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	if !s.opts.CheckOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer ws.Close()

	conn := NewConnection(domain.ConnectionID(utils.GenerateConnectionID()), s.opts.SendQueueSize)
	if err := s.registry.Register(conn); err != nil {
		s.logger.Errorw("failed to register connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.registry.Disconnect(conn.ID())
		s.logger.Infow("connection closed", "conn_id", conn.ID())
	}()

	s.logger.Infow("connection opened", "conn_id", conn.ID(), "remote_addr", r.RemoteAddr)
	s.sendTo(conn, domain.EventConnected, presencePayload{ID: conn.ID()})

	ws.SetReadLimit(s.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	errorChan := make(chan error, 1)
	go s.readLoop(ctx, ws, conn, errorChan)

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case frame := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Infow("error writing to connection", "conn_id", conn.ID(), "error", err)
				return
			}

		case <-pingTicker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "conn_id", conn.ID(), "error", err)
				return
			}

		case <-conn.Stopped():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(s.opts.WriteTimeout))
			return

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from connection", "conn_id", conn.ID(), "error", err)
			}
			return
		}
	}
}

// readLoop handles inbound frames in arrival order until the socket fails.
func (s *WebSocketServer) readLoop(ctx context.Context, ws *websocket.Conn, conn *Connection, errorChan chan<- error) {
	var limiter *rate.Limiter
	if s.opts.MessagesPerSecond > 0 {
		burst := s.opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), burst)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			errorChan <- err
			return
		}

		if limiter != nil && !limiter.Allow() {
			s.metrics.MessageRejected("rate_limited")
			s.logger.Warnw("dropping message over rate limit", "conn_id", conn.ID())
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.metrics.MessageRejected("malformed")
			s.logger.Infow("dropping malformed message",
				"conn_id", conn.ID(),
				"error", err,
				"preview", utils.TruncateString(string(data), 64),
			)
			continue
		}

		if err := s.handleMessage(ctx, conn, msg); err != nil {
			s.logger.Infow("error handling message", "conn_id", conn.ID(), "type", msg.Type, "error", err)
		}
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, conn *Connection, msg Message) (err error) {
	ctx, span := tracing.TraceWebSocketMessage(ctx, msg.Type, string(conn.ID()))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			s.metrics.MessageRejected("panic")
			s.logger.Errorw("recovered from panic while handling message",
				"conn_id", conn.ID(),
				"type", msg.Type,
				"panic", p,
				"stack", zap.StackSkip("", 2).String,
			)
			err = fmt.Errorf("panic handling %s: %v", msg.Type, p)
		}
		if err != nil {
			tracing.RecordError(ctx, err)
		}
	}()

	switch msg.Type {
	case domain.EventJoinMeeting:
		return s.handleJoin(ctx, conn, msg.Payload)
	case domain.EventLeaveMeeting:
		return s.handleLeave(conn, msg.Payload)
	case domain.EventSendOffer, domain.EventSendAnswer, domain.EventSendICECandidate:
		return s.handleRelay(conn, msg.Type, msg.Payload)
	default:
		s.metrics.MessageRejected("unknown_type")
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *WebSocketServer) handleJoin(ctx context.Context, conn *Connection, payload json.RawMessage) error {
	meetingID, err := parseMeetingRef(payload)
	if err != nil {
		// an unreadable id cannot name an existing meeting
		s.rejectJoin(conn, "", domain.ErrMeetingNotFound)
		return err
	}

	joined, err := s.registry.Join(ctx, conn.ID(), meetingID)
	if err != nil {
		s.rejectJoin(conn, meetingID, err)
		return err
	}
	if !joined {
		s.logger.Debugw("duplicate join ignored", "conn_id", conn.ID(), "meeting_id", meetingID)
	}
	return nil
}

func (s *WebSocketServer) rejectJoin(conn *Connection, meetingID domain.MeetingID, err error) {
	reason, message := "store_unavailable", joinFailedMessage
	switch {
	case errors.Is(err, domain.ErrMeetingNotFound):
		reason, message = "not_found", meetingNotFoundMessage
	case errors.Is(err, domain.ErrConnectionClosed), errors.Is(err, domain.ErrConnectionUnknown):
		// nobody left to tell
		s.metrics.JoinFailed("closed")
		return
	}

	s.metrics.JoinFailed(reason)
	s.logger.Infow("join rejected",
		"conn_id", conn.ID(),
		"meeting_id", meetingID,
		"reason", reason,
		"error", err,
	)
	s.sendTo(conn, domain.EventMeetingError, meetingErrorPayload{Message: message})
}

func (s *WebSocketServer) handleLeave(conn *Connection, payload json.RawMessage) error {
	meetingID, err := parseMeetingRef(payload)
	if err != nil {
		s.metrics.MessageRejected("malformed")
		return err
	}
	s.registry.Leave(conn.ID(), meetingID)
	return nil
}

func (s *WebSocketServer) handleRelay(conn *Connection, eventType string, payload json.RawMessage) error {
	meetingID, body, err := parseRelayPayload(eventType, payload)
	if err != nil {
		s.metrics.MessageRejected("malformed")
		return err
	}
	if !conn.HasMeeting(meetingID) {
		s.metrics.MessageRejected("not_member")
		return fmt.Errorf("connection is not a member of meeting %s", meetingID)
	}

	outType := domain.RelayEvents[eventType]
	frame, err := encodeRelay(outType, body, conn.ID())
	if err != nil {
		s.metrics.MessageRejected("malformed")
		return fmt.Errorf("failed to encode %s: %w", outType, err)
	}

	delivered := s.broadcaster.Relay(conn.ID(), meetingID, outType, frame)
	s.logger.Debugw("relayed signaling message",
		"conn_id", conn.ID(),
		"meeting_id", meetingID,
		"type", eventType,
		"bytes", len(body),
		"recipients", delivered,
	)
	return nil
}

func (s *WebSocketServer) sendTo(conn *Connection, eventType string, payload any) {
	frame, err := encode(eventType, payload)
	if err != nil {
		s.logger.Errorw("failed to encode message", "type", eventType, "error", err)
		return
	}
	if !conn.Deliver(frame) {
		s.metrics.DeliveryDropped("queue_full")
		s.logger.Warnw("dropping message for slow connection", "conn_id", conn.ID(), "type", eventType)
	}
}

// Stats reports live connection and room counts.
func (s *WebSocketServer) Stats() (connections, rooms int) {
	return s.registry.Connections(), s.registry.Rooms()
}

// Shutdown closes every socket and waits until the registry is empty or ctx ends.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.registry.StopAll()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for s.registry.Connections() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
