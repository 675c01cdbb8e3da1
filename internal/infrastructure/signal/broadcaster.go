package signal

import (
	"meetrelay/internal/core/domain"

	"go.uber.org/zap"
)

// Broadcaster relays signaling frames to everyone in a room but the sender.
type Broadcaster struct {
	registry *Registry
	metrics  Metrics
	logger   *zap.SugaredLogger
}

func NewBroadcaster(registry *Registry, metrics Metrics, logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: orNoop(metrics), logger: logger}
}

// Relay enqueues frame for every member of meetingID except sender and
// returns the number of recipients that accepted it. An absent or empty room
// yields zero deliveries.
func (b *Broadcaster) Relay(sender domain.ConnectionID, meetingID domain.MeetingID, eventType string, frame []byte) int {
	delivered := 0
	b.registry.withRoom(meetingID, func(members map[domain.ConnectionID]*Connection) {
		delivered = fanOut(members, sender, eventType, frame, b.metrics, b.logger)
	})
	b.metrics.MessageRelayed(eventType)
	return delivered
}

// fanOut delivers frame to members other than exclude without blocking on
// any of them. The caller holds the room lock.
func fanOut(
	members map[domain.ConnectionID]*Connection,
	exclude domain.ConnectionID,
	eventType string,
	frame []byte,
	metrics Metrics,
	logger *zap.SugaredLogger,
) int {
	delivered := 0
	for id, conn := range members {
		if id == exclude {
			continue
		}
		if conn.Deliver(frame) {
			delivered++
			metrics.MessageDelivered(eventType)
			continue
		}

		reason := "queue_full"
		if conn.IsClosed() {
			reason = "closed"
		}
		metrics.DeliveryDropped(reason)
		logger.Warnw("dropping message for slow or closed connection",
			"conn_id", id,
			"type", eventType,
			"reason", reason,
		)
	}
	return delivered
}
