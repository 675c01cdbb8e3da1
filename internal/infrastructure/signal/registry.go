package signal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"

	"go.uber.org/zap"
)

// room is the materialized membership of one meeting. members is guarded by
// mu; refs is guarded by Registry.mu and counts callers about to lock mu.
type room struct {
	id      domain.MeetingID
	mu      sync.RWMutex
	members map[domain.ConnectionID]*Connection
	refs    int
}

// Registry tracks live connections and meeting rooms.
//
// Lock order is Registry.mu before any room.mu, and rooms in ascending
// meeting ID order. Registry.mu is never acquired while a room lock is held.
type Registry struct {
	directory ports.MeetingService
	presence  *Presence
	metrics   Metrics
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	connections map[domain.ConnectionID]*Connection
	rooms       map[domain.MeetingID]*room
}

func NewRegistry(directory ports.MeetingService, metrics Metrics, logger *zap.SugaredLogger) *Registry {
	metrics = orNoop(metrics)
	return &Registry{
		directory:   directory,
		presence:    NewPresence(metrics, logger),
		metrics:     metrics,
		logger:      logger,
		connections: make(map[domain.ConnectionID]*Connection),
		rooms:       make(map[domain.MeetingID]*room),
	}
}

// Register adds a freshly accepted connection.
func (r *Registry) Register(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return fmt.Errorf("connection %s already registered", conn.ID())
	}
	r.connections[conn.ID()] = conn
	r.metrics.ConnectionOpened()
	return nil
}

func (r *Registry) Connection(id domain.ConnectionID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// Join adds the connection to the meeting's room after confirming the meeting
// exists. The lookup runs before any lock is taken; a failed lookup leaves
// membership untouched. Joining twice is a no-op and reports false.
func (r *Registry) Join(ctx context.Context, connID domain.ConnectionID, meetingID domain.MeetingID) (bool, error) {
	conn, ok := r.Connection(connID)
	if !ok {
		return false, domain.ErrConnectionUnknown
	}
	if conn.HasMeeting(meetingID) {
		return false, nil
	}

	if _, err := r.directory.GetMeeting(ctx, meetingID); err != nil {
		return false, err
	}

	rm := r.acquireRoom(meetingID)
	defer r.releaseRoom(rm)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, member := rm.members[connID]; member {
		return false, nil
	}
	if err := conn.addMeeting(meetingID); err != nil {
		return false, err
	}

	rm.members[connID] = conn
	if len(rm.members) == 1 {
		r.metrics.RoomOpened()
	}
	r.presence.Joined(meetingID, rm.members, connID)

	r.logger.Infow("connection joined meeting",
		"conn_id", connID,
		"meeting_id", meetingID,
		"members", len(rm.members),
	)
	return true, nil
}

// Leave removes one membership. It reports whether the connection was a member.
func (r *Registry) Leave(connID domain.ConnectionID, meetingID domain.MeetingID) bool {
	conn, ok := r.Connection(connID)
	if !ok {
		return false
	}

	rm := r.acquireRoom(meetingID)
	defer r.releaseRoom(rm)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !r.removeMemberLocked(rm, connID) {
		return false
	}
	conn.removeMeeting(meetingID)

	r.logger.Infow("connection left meeting",
		"conn_id", connID,
		"meeting_id", meetingID,
	)
	return true
}

// Disconnect forgets the connection and removes every membership it holds.
// All affected rooms are locked together so no observer sees the connection
// in one room but not another. It returns the meetings that were left.
func (r *Registry) Disconnect(connID domain.ConnectionID) []domain.MeetingID {
	r.mu.Lock()
	conn, ok := r.connections[connID]
	if ok {
		delete(r.connections, connID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.metrics.ConnectionClosed()

	meetings := conn.close()
	rooms := make([]*room, 0, len(meetings))
	for _, id := range meetings {
		rooms = append(rooms, r.acquireRoom(id))
	}

	for _, rm := range rooms {
		rm.mu.Lock()
	}
	left := make([]domain.MeetingID, 0, len(rooms))
	for _, rm := range rooms {
		if r.removeMemberLocked(rm, connID) {
			left = append(left, rm.id)
		}
	}
	for i := len(rooms) - 1; i >= 0; i-- {
		rooms[i].mu.Unlock()
	}

	for _, rm := range rooms {
		r.releaseRoom(rm)
	}

	r.logger.Infow("connection removed from registry",
		"conn_id", connID,
		"meetings_left", len(left),
	)
	return left
}

// removeMemberLocked must be called with rm.mu held for writing.
func (r *Registry) removeMemberLocked(rm *room, connID domain.ConnectionID) bool {
	if _, member := rm.members[connID]; !member {
		return false
	}
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		r.metrics.RoomClosed()
	}
	r.presence.Left(rm.id, rm.members, connID)
	return true
}

// MembersOf returns the current members of a meeting in ascending order.
func (r *Registry) MembersOf(meetingID domain.MeetingID) []domain.ConnectionID {
	var ids []domain.ConnectionID
	r.withRoom(meetingID, func(members map[domain.ConnectionID]*Connection) {
		ids = make([]domain.ConnectionID, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// withRoom runs fn under the room's read lock. fn is not called when the
// meeting has no room.
func (r *Registry) withRoom(meetingID domain.MeetingID, fn func(members map[domain.ConnectionID]*Connection)) {
	r.mu.Lock()
	rm, ok := r.rooms[meetingID]
	r.mu.Unlock()
	if !ok {
		return
	}

	// a room dropped from the map after the lookup is empty and stays empty
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	fn(rm.members)
}

// Rooms returns the number of materialized rooms.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Connections returns the number of registered connections.
func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// StopAll asks every live connection to close.
func (r *Registry) StopAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Stop()
	}
}

func (r *Registry) acquireRoom(id domain.MeetingID) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		rm = &room{id: id, members: make(map[domain.ConnectionID]*Connection)}
		r.rooms[id] = rm
	}
	rm.refs++
	return rm
}

func (r *Registry) releaseRoom(rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm.refs--
	if rm.refs > 0 {
		return
	}

	rm.mu.RLock()
	empty := len(rm.members) == 0
	rm.mu.RUnlock()
	if empty {
		delete(r.rooms, rm.id)
	}
}
