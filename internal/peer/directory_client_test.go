package peer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryClient_CreateAndGet(t *testing.T) {
	relay := newTestRelay(t)
	client := NewDirectoryClient(relay.baseURL, nil)
	ctx := context.Background()

	id, err := client.CreateMeeting(ctx, "Alice")
	require.NoError(t, err)
	assert.Len(t, string(id), 12)

	record, err := client.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "Alice", record.HostName)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestDirectoryClient_Errors(t *testing.T) {
	relay := newTestRelay(t)
	client := NewDirectoryClient(relay.baseURL, nil)
	ctx := context.Background()

	_, err := client.GetMeeting(ctx, "m404")
	assert.ErrorIs(t, err, domain.ErrMeetingNotFound)

	_, err = client.CreateMeeting(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidHostName)
}

func TestDirectoryClient_RetriesUnavailableStore(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meetingRoom":"{\"meetingId\":\"m1\",\"name\":\"Alice\"}"}`))
	}))
	defer srv.Close()

	client := NewDirectoryClient(srv.URL, nil).WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   2,
	})

	record, err := client.GetMeeting(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingID("m1"), record.ID)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(-10)
	_, err = client.GetMeeting(context.Background(), "m1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestDirectoryClient_CreateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewDirectoryClient(srv.URL, nil).WithRetry(retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond})
	_, err := client.CreateMeeting(context.Background(), "Alice")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDirectoryClient_DoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewDirectoryClient(srv.URL, nil).WithRetry(retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond})
	_, err := client.GetMeeting(context.Background(), "m404")
	assert.ErrorIs(t, err, domain.ErrMeetingNotFound)
	assert.Equal(t, int32(1), calls.Load())
}
