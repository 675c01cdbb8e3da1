package domain

type ConnectionID string

// PeerConnectionState mirrors the negotiation status reported by the
// underlying peer transport. The string values match pion's
// webrtc.PeerConnectionState.
type PeerConnectionState string

const (
	PeerStateNew          PeerConnectionState = "new"
	PeerStateConnecting   PeerConnectionState = "connecting"
	PeerStateConnected    PeerConnectionState = "connected"
	PeerStateDisconnected PeerConnectionState = "disconnected"
	PeerStateFailed       PeerConnectionState = "failed"
	PeerStateClosed       PeerConnectionState = "closed"
)

// Interrupted reports whether the state starts a disconnect episode.
func (s PeerConnectionState) Interrupted() bool {
	return s == PeerStateDisconnected || s == PeerStateFailed
}
