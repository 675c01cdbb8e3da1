package signal

import (
	"meetrelay/internal/core/domain"

	"go.uber.org/zap"
)

// Presence announces membership changes to the rest of a room. The registry
// calls it while holding the room's write lock, after the membership change.
type Presence struct {
	metrics Metrics
	logger  *zap.SugaredLogger
}

func NewPresence(metrics Metrics, logger *zap.SugaredLogger) *Presence {
	return &Presence{metrics: orNoop(metrics), logger: logger}
}

// Joined sends user-joined {id} to every member except the joiner.
func (p *Presence) Joined(meetingID domain.MeetingID, members map[domain.ConnectionID]*Connection, joiner domain.ConnectionID) int {
	return p.announce(domain.EventUserJoined, meetingID, members, joiner)
}

// Left sends user-left {id} to the remaining members.
func (p *Presence) Left(meetingID domain.MeetingID, members map[domain.ConnectionID]*Connection, leaver domain.ConnectionID) int {
	return p.announce(domain.EventUserLeft, meetingID, members, leaver)
}

func (p *Presence) announce(eventType string, meetingID domain.MeetingID, members map[domain.ConnectionID]*Connection, subject domain.ConnectionID) int {
	frame, err := encode(eventType, presencePayload{ID: subject})
	if err != nil {
		p.logger.Errorw("failed to encode presence event", "type", eventType, "error", err)
		return 0
	}

	delivered := fanOut(members, subject, eventType, frame, p.metrics, p.logger)
	p.metrics.PresenceEmitted(eventType)

	p.logger.Debugw("presence announced",
		"type", eventType,
		"meeting_id", meetingID,
		"subject", subject,
		"recipients", delivered,
	)
	return delivered
}
