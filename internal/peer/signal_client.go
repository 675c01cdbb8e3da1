package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/infrastructure/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
)

var ErrClientClosed = errors.New("signal client closed")

// SignalClient is a relay connection from the peer side. Inbound frames are
// delivered on Events in arrival order; the channel closes when the socket
// goes away.
type SignalClient struct {
	conn   *websocket.Conn
	id     domain.ConnectionID
	events chan signal.Message
	out    chan []byte
	done   chan struct{}
	logger *zap.SugaredLogger

	closeOnce sync.Once
}

// DialSignal connects to the relay and waits for the connected frame that
// carries this client's connection id.
func DialSignal(ctx context.Context, url string, logger *zap.SugaredLogger) (*SignalClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var hello signal.Message
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read connected frame: %w", err)
	}
	if hello.Type != domain.EventConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", hello.Type)
	}
	var who struct {
		ID domain.ConnectionID `json:"id"`
	}
	if err := json.Unmarshal(hello.Payload, &who); err != nil || who.ID == "" {
		conn.Close()
		return nil, fmt.Errorf("connected frame has no id")
	}

	c := &SignalClient{
		conn:   conn,
		id:     who.ID,
		events: make(chan signal.Message, 64),
		out:    make(chan []byte, 64),
		done:   make(chan struct{}),
		logger: logger,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *SignalClient) ID() domain.ConnectionID {
	return c.id
}

func (c *SignalClient) Events() <-chan signal.Message {
	return c.events
}

func (c *SignalClient) Join(meetingID domain.MeetingID) error {
	return c.send(domain.EventJoinMeeting, map[string]domain.MeetingID{"meetingID": meetingID})
}

func (c *SignalClient) Leave(meetingID domain.MeetingID) error {
	return c.send(domain.EventLeaveMeeting, map[string]domain.MeetingID{"meetingID": meetingID})
}

func (c *SignalClient) SendOffer(meetingID domain.MeetingID, offer any) error {
	return c.send(domain.EventSendOffer, map[string]any{"meetingID": meetingID, "offer": offer})
}

func (c *SignalClient) SendAnswer(meetingID domain.MeetingID, answer any) error {
	return c.send(domain.EventSendAnswer, map[string]any{"meetingID": meetingID, "answer": answer})
}

func (c *SignalClient) SendCandidate(meetingID domain.MeetingID, candidate any) error {
	return c.send(domain.EventSendICECandidate, map[string]any{"meetingID": meetingID, "candidate": candidate})
}

// Close sends a close frame and stops both pumps.
func (c *SignalClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *SignalClient) send(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}
	frame, err := json.Marshal(signal.Message{Type: eventType, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

func (c *SignalClient) readPump() {
	defer func() {
		close(c.events)
		c.Close()
	}()

	for {
		var msg signal.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Infow("signal connection lost", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.events <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *SignalClient) writePump() {
	defer c.conn.Close()

	for {
		select {
		case frame := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Infow("signal write failed", "conn_id", c.id, "error", err)
				c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
