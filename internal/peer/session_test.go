package peer

import (
	"context"
	"testing"
	"time"

	"meetrelay/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, relay *testRelay, meetingID domain.MeetingID, name string) *Session {
	t.Helper()
	sig := dialTest(t, relay)
	s, err := NewSession(context.Background(), NewDirectoryClient(relay.baseURL, nil), sig, SessionConfig{
		MeetingID:    meetingID,
		DisplayName:  name,
		ReofferDelay: time.Minute,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_HostAndGuestNegotiate(t *testing.T) {
	relay := newTestRelay(t)
	id, err := NewDirectoryClient(relay.baseURL, nil).CreateMeeting(context.Background(), "Alice")
	require.NoError(t, err)

	host := newTestSession(t, relay, id, "Alice")
	guest := newTestSession(t, relay, id, "Bob")
	assert.Equal(t, domain.RoleHost, host.Role())
	assert.Equal(t, domain.RoleGuest, guest.Role())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = host.Run(ctx) }()
	waitMember(t, relay, id, host.signal.ID())
	go func() { _ = guest.Run(ctx) }()

	// the guest answered the host's offer and the host applied the answer
	assert.Eventually(t, func() bool {
		remote := host.pc.RemoteDescription()
		return remote != nil && remote.Type == webrtc.SDPTypeAnswer
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		remote := guest.pc.RemoteDescription()
		return remote != nil && remote.Type == webrtc.SDPTypeOffer
	}, 5*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []domain.ConnectionID{host.signal.ID(), guest.signal.ID()}, relay.registry.MembersOf(id))
}

func TestSession_UnknownMeeting(t *testing.T) {
	relay := newTestRelay(t)
	sig := dialTest(t, relay)

	_, err := NewSession(context.Background(), NewDirectoryClient(relay.baseURL, nil), sig, SessionConfig{
		MeetingID:   "m404",
		DisplayName: "Alice",
	}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, domain.ErrMeetingNotFound)
	assert.Empty(t, relay.registry.MembersOf("m404"))
}
