package peer

import (
	"encoding/json"
	"sync"
	"time"

	"meetrelay/internal/core/domain"

	"go.uber.org/zap"
)

const DefaultReofferDelay = 5 * time.Second

// Negotiator decides when this peer issues an offer or an answer. It does not
// build session descriptions itself; the offer and answer callbacks do.
//
// A host offers on Start, on every PeerJoined while not connected, and once
// per disconnect episode when the connection does not recover within the
// re-offer delay. A guest answers every offer it receives.
type Negotiator struct {
	role   domain.Role
	delay  time.Duration
	offer  func()
	answer func(offer json.RawMessage)
	logger *zap.SugaredLogger

	mu         sync.Mutex
	state      domain.PeerConnectionState
	episode    bool
	timer      *time.Timer
	generation uint64
	closed     bool
}

func NewNegotiator(
	role domain.Role,
	delay time.Duration,
	offer func(),
	answer func(offer json.RawMessage),
	logger *zap.SugaredLogger,
) *Negotiator {
	if delay <= 0 {
		delay = DefaultReofferDelay
	}
	return &Negotiator{
		role:   role,
		delay:  delay,
		offer:  offer,
		answer: answer,
		logger: logger,
		state:  domain.PeerStateNew,
	}
}

func (n *Negotiator) Role() domain.Role {
	return n.role
}

// Start issues the host's initial offer. It reports whether an offer was made.
func (n *Negotiator) Start() bool {
	n.mu.Lock()
	issue := n.role.IsHost() && !n.closed
	n.mu.Unlock()

	if issue {
		n.logger.Debugw("issuing initial offer")
		n.offer()
	}
	return issue
}

// PeerJoined re-offers from the host unless a connection is already up.
func (n *Negotiator) PeerJoined(id domain.ConnectionID) bool {
	n.mu.Lock()
	issue := n.role.IsHost() && !n.closed && n.state != domain.PeerStateConnected
	n.mu.Unlock()

	if issue {
		n.logger.Debugw("peer joined, offering", "peer_id", id)
		n.offer()
	}
	return issue
}

// OfferReceived answers exactly once per offer. Hosts ignore offers.
func (n *Negotiator) OfferReceived(offer json.RawMessage) bool {
	n.mu.Lock()
	respond := !n.role.IsHost() && !n.closed
	n.mu.Unlock()

	if !respond {
		n.logger.Debugw("ignoring offer", "role", n.role)
		return false
	}
	n.answer(offer)
	return true
}

// StateChanged feeds transport state into the re-offer policy. Only the host
// keeps a timer; a guest just records the state.
func (n *Negotiator) StateChanged(state domain.PeerConnectionState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.state = state
	if !n.role.IsHost() {
		return
	}

	switch {
	case state == domain.PeerStateConnected:
		if n.episode {
			n.logger.Debugw("connection recovered, cancelling re-offer")
		}
		n.stopTimerLocked()
		n.episode = false

	case state.Interrupted() && !n.episode:
		n.episode = true
		n.generation++
		gen := n.generation
		n.timer = time.AfterFunc(n.delay, func() { n.fire(gen) })
		n.logger.Infow("connection interrupted, re-offer scheduled", "state", state, "delay", n.delay)
	}
}

func (n *Negotiator) fire(gen uint64) {
	n.mu.Lock()
	if n.closed || gen != n.generation {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	state := n.state
	n.mu.Unlock()

	if state == domain.PeerStateConnected {
		return
	}
	n.logger.Infow("connection did not recover, re-offering", "state", state)
	n.offer()
}

// Close cancels any pending re-offer. Later events are ignored.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.stopTimerLocked()
}

// ReofferPending reports whether a re-offer timer is armed.
func (n *Negotiator) ReofferPending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

func (n *Negotiator) State() domain.PeerConnectionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// stopTimerLocked also bumps the generation so a callback already running
// past Stop sees itself as stale.
func (n *Negotiator) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.generation++
}
