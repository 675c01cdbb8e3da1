package peer

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meetrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDelay = 40 * time.Millisecond

type recorder struct {
	offers  atomic.Int32
	mu      sync.Mutex
	answers []string
}

func (r *recorder) offer() { r.offers.Add(1) }

func (r *recorder) answer(offer json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, string(offer))
}

func (r *recorder) answerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}

func newTestNegotiator(role domain.Role) (*Negotiator, *recorder) {
	rec := &recorder{}
	n := NewNegotiator(role, testDelay, rec.offer, rec.answer, zap.NewNop().Sugar())
	return n, rec
}

func TestNegotiator_HostOffersOnStart(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	assert.True(t, n.Start())
	assert.Equal(t, int32(1), rec.offers.Load())

	guest, grec := newTestNegotiator(domain.RoleGuest)
	assert.False(t, guest.Start())
	assert.Zero(t, grec.offers.Load())
}

func TestNegotiator_PeerJoined(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)

	assert.True(t, n.PeerJoined("G"))
	assert.Equal(t, int32(1), rec.offers.Load())

	n.StateChanged(domain.PeerStateConnected)
	assert.False(t, n.PeerJoined("G2"), "no offer while connected")
	assert.Equal(t, int32(1), rec.offers.Load())

	guest, grec := newTestNegotiator(domain.RoleGuest)
	assert.False(t, guest.PeerJoined("H"))
	assert.Zero(t, grec.offers.Load())
}

func TestNegotiator_GuestAnswersEveryOffer(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleGuest)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	assert.True(t, n.OfferReceived(offer))
	assert.True(t, n.OfferReceived(offer), "duplicates get a fresh answer")
	assert.Equal(t, []string{string(offer), string(offer)}, rec.answers)

	host, hrec := newTestNegotiator(domain.RoleHost)
	assert.False(t, host.OfferReceived(offer))
	assert.Zero(t, hrec.answerCount())
}

func TestNegotiator_ReofferAfterDelay(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	n.StateChanged(domain.PeerStateConnected)

	n.StateChanged(domain.PeerStateDisconnected)
	assert.True(t, n.ReofferPending())

	assert.Eventually(t, func() bool { return rec.offers.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return rec.offers.Load() > 1 }, 4*testDelay, 5*time.Millisecond)
	assert.False(t, n.ReofferPending())
}

func TestNegotiator_RecoveryCancelsReoffer(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	n.StateChanged(domain.PeerStateConnected)

	n.StateChanged(domain.PeerStateDisconnected)
	n.StateChanged(domain.PeerStateConnected)
	assert.False(t, n.ReofferPending())

	assert.Never(t, func() bool { return rec.offers.Load() > 0 }, 3*testDelay, 5*time.Millisecond)
}

func TestNegotiator_OneReofferPerEpisode(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	n.StateChanged(domain.PeerStateConnected)

	// disconnected then failed is one episode
	n.StateChanged(domain.PeerStateDisconnected)
	n.StateChanged(domain.PeerStateFailed)
	n.StateChanged(domain.PeerStateDisconnected)

	require.Eventually(t, func() bool { return rec.offers.Load() == 1 }, time.Second, 5*time.Millisecond)

	// still down after the re-offer: nothing more until a new episode
	n.StateChanged(domain.PeerStateFailed)
	assert.False(t, n.ReofferPending())
	assert.Never(t, func() bool { return rec.offers.Load() > 1 }, 3*testDelay, 5*time.Millisecond)

	// recovering and dropping again starts a second episode
	n.StateChanged(domain.PeerStateConnected)
	n.StateChanged(domain.PeerStateFailed)
	assert.Eventually(t, func() bool { return rec.offers.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestNegotiator_ClosedNeverArmsTimer(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	n.StateChanged(domain.PeerStateClosed)
	assert.False(t, n.ReofferPending())
	assert.Never(t, func() bool { return rec.offers.Load() > 0 }, 3*testDelay, 5*time.Millisecond)
}

func TestNegotiator_GuestHasNoTimer(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleGuest)
	n.StateChanged(domain.PeerStateDisconnected)
	assert.False(t, n.ReofferPending())
	assert.Equal(t, domain.PeerStateDisconnected, n.State())
	assert.Never(t, func() bool { return rec.offers.Load() > 0 }, 3*testDelay, 5*time.Millisecond)
}

func TestNegotiator_CloseCancelsPendingReoffer(t *testing.T) {
	n, rec := newTestNegotiator(domain.RoleHost)
	n.StateChanged(domain.PeerStateFailed)
	require.True(t, n.ReofferPending())

	n.Close()
	assert.False(t, n.ReofferPending())
	assert.Never(t, func() bool { return rec.offers.Load() > 0 }, 3*testDelay, 5*time.Millisecond)

	assert.False(t, n.Start())
	assert.False(t, n.PeerJoined("G"))
	n.StateChanged(domain.PeerStateDisconnected)
	assert.False(t, n.ReofferPending())
}
