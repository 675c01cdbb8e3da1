package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"meetrelay/internal/core/domain"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// meetingRef is the addressing part of inbound payloads. encoding/json
// matches keys case-insensitively, so "meetingId" decodes here as well.
type meetingRef struct {
	MeetingID string `json:"meetingID"`
}

type relayPayload struct {
	meetingRef
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

// body returns the opaque value carried by an inbound relay event.
func (p relayPayload) body(eventType string) json.RawMessage {
	switch eventType {
	case domain.EventSendOffer:
		return p.Offer
	case domain.EventSendAnswer:
		return p.Answer
	default:
		return p.Candidate
	}
}

// bodyKey is the payload key shared by an inbound event and its relayed form.
func bodyKey(eventType string) string {
	switch eventType {
	case domain.EventSendOffer, domain.EventReceiveOffer:
		return "offer"
	case domain.EventSendAnswer, domain.EventReceiveAnswer:
		return "answer"
	default:
		return "candidate"
	}
}

type presencePayload struct {
	ID domain.ConnectionID `json:"id"`
}

type meetingErrorPayload struct {
	Message string `json:"message"`
}

const (
	meetingNotFoundMessage = "Meeting not found"
	joinFailedMessage      = "Failed to join meeting"
)

var errMissingMeetingID = errors.New("missing meeting id")

// parseMeetingRef accepts either a bare JSON string or an object carrying
// meetingID.
func parseMeetingRef(raw json.RawMessage) (domain.MeetingID, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errMissingMeetingID
	}

	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("invalid meeting id: %w", err)
		}
	} else {
		var ref meetingRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return "", fmt.Errorf("invalid payload: %w", err)
		}
		id = ref.MeetingID
	}

	if id == "" {
		return "", errMissingMeetingID
	}
	return domain.MeetingID(id), nil
}

func parseRelayPayload(eventType string, raw json.RawMessage) (domain.MeetingID, json.RawMessage, error) {
	var p relayPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
	}
	if p.MeetingID == "" {
		return "", nil, errMissingMeetingID
	}

	body := p.body(eventType)
	if len(body) == 0 {
		return "", nil, fmt.Errorf("%s payload has no %s", eventType, bodyKey(eventType))
	}
	return domain.MeetingID(p.MeetingID), body, nil
}

// encode renders an outbound frame once so it can be shared by every recipient.
func encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: eventType, Payload: raw})
}

// encodeRelay builds the receive-* frame {<key>: body, from: sender}. body is
// copied byte for byte.
func encodeRelay(outType string, body json.RawMessage, from domain.ConnectionID) ([]byte, error) {
	return encode(outType, map[string]any{
		bodyKey(outType): body,
		"from":           from,
	})
}
