package signal

import (
	"sort"
	"sync"

	"meetrelay/internal/core/domain"
)

// Connection is the registry's view of one live socket: its identity, the
// meetings it joined and its bounded outbound queue. The socket itself is
// owned by the server loop draining Outbound.
type Connection struct {
	id   domain.ConnectionID
	send chan []byte

	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	closed   bool
	meetings map[domain.MeetingID]struct{}
}

func NewConnection(id domain.ConnectionID, queueSize int) *Connection {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Connection{
		id:       id,
		send:     make(chan []byte, queueSize),
		stop:     make(chan struct{}),
		meetings: make(map[domain.MeetingID]struct{}),
	}
}

func (c *Connection) ID() domain.ConnectionID {
	return c.id
}

// Deliver enqueues frame without blocking. It reports false when the queue is
// full or the connection is gone; the frame is dropped in both cases.
func (c *Connection) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound is drained by the connection's single writer.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Stop asks the writer to close the socket. Registry cleanup still happens
// through Registry.Disconnect once the socket loop exits.
func (c *Connection) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Connection) Stopped() <-chan struct{} {
	return c.stop
}

func (c *Connection) HasMeeting(id domain.MeetingID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.meetings[id]
	return ok
}

// Meetings returns the joined meetings in ascending order.
func (c *Connection) Meetings() []domain.MeetingID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedMeetingsLocked()
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) addMeeting(id domain.MeetingID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}
	c.meetings[id] = struct{}{}
	return nil
}

func (c *Connection) removeMeeting(id domain.MeetingID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.meetings, id)
}

// close marks the connection dead and returns the meetings it still belongs
// to. After close no join can succeed and no frame is accepted.
func (c *Connection) close() []domain.MeetingID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sortedMeetingsLocked()
}

func (c *Connection) sortedMeetingsLocked() []domain.MeetingID {
	ids := make([]domain.MeetingID, 0, len(c.meetings))
	for id := range c.meetings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
