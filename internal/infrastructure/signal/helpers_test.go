package signal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"meetrelay/internal/core/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDirectory struct {
	mu       sync.Mutex
	meetings map[domain.MeetingID]*domain.MeetingRecord
	err      error
	lookups  int
}

func newStubDirectory(ids ...domain.MeetingID) *stubDirectory {
	d := &stubDirectory{meetings: make(map[domain.MeetingID]*domain.MeetingRecord)}
	for _, id := range ids {
		d.meetings[id] = &domain.MeetingRecord{ID: id, HostName: "Alice"}
	}
	return d
}

func (d *stubDirectory) CreateMeeting(ctx context.Context, hostName string) (*domain.MeetingRecord, error) {
	panic("not used by the relay")
}

func (d *stubDirectory) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	record, ok := d.meetings[id]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}
	return record, nil
}

func (d *stubDirectory) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// drain returns every frame queued on conn without blocking.
func drain(t *testing.T, conn *Connection) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case frame := <-conn.Outbound():
			var msg Message
			require.NoError(t, json.Unmarshal(frame, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func payloadMap(t *testing.T, msg Message) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &m))
	return m
}

func newTestRegistry(dir *stubDirectory) *Registry {
	return NewRegistry(dir, nil, zap.NewNop().Sugar())
}

func register(t *testing.T, reg *Registry, id domain.ConnectionID) *Connection {
	t.Helper()
	conn := NewConnection(id, 32)
	require.NoError(t, reg.Register(conn))
	return conn
}
