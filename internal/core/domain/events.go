package domain

// Event names on the signaling socket. They are shared with existing
// browser clients and must not change.
const (
	EventJoinMeeting      = "join-meeting"
	EventLeaveMeeting     = "leave-meeting"
	EventSendOffer        = "send-offer"
	EventSendAnswer       = "send-answer"
	EventSendICECandidate = "send-ice-candidate"

	EventConnected           = "connected"
	EventReceiveOffer        = "receive-offer"
	EventReceiveAnswer       = "receive-answer"
	EventReceiveICECandidate = "receive-ice-candidate"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventMeetingError        = "meeting-error"
)

// RelayEvents maps an inbound signaling event to the event delivered to the
// other members of the room.
var RelayEvents = map[string]string{
	EventSendOffer:        EventReceiveOffer,
	EventSendAnswer:       EventReceiveAnswer,
	EventSendICECandidate: EventReceiveICECandidate,
}
