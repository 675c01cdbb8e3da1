package signal

import (
	"encoding/json"
	"testing"

	"meetrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeetingRef(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    domain.MeetingID
		wantErr bool
	}{
		{"bare string", `"m1"`, "m1", false},
		{"object", `{"meetingID":"m1"}`, "m1", false},
		{"camel case key", `{"meetingId":"m1"}`, "m1", false},
		{"empty", ``, "", true},
		{"empty string", `""`, "", true},
		{"object without id", `{"other":1}`, "", true},
		{"number", `42`, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMeetingRef(json.RawMessage(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRelayPayload(t *testing.T) {
	id, body, err := parseRelayPayload(domain.EventSendICECandidate,
		json.RawMessage(`{"meetingId":"m1","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingID("m1"), id)
	assert.JSONEq(t, `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}`, string(body))

	_, _, err = parseRelayPayload(domain.EventSendOffer, json.RawMessage(`{"meetingID":"m1","answer":{}}`))
	assert.Error(t, err, "offer event without offer")

	_, _, err = parseRelayPayload(domain.EventSendAnswer, json.RawMessage(`{"answer":{}}`))
	assert.ErrorIs(t, err, errMissingMeetingID)

	_, _, err = parseRelayPayload(domain.EventSendAnswer, json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestEncodeRelay_PreservesBodyBytes(t *testing.T) {
	body := json.RawMessage(`{"sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n","type":"answer"}`)
	frame, err := encodeRelay(domain.EventReceiveAnswer, body, "conn-1")
	require.NoError(t, err)

	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Answer json.RawMessage `json:"answer"`
			From   string          `json:"from"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, domain.EventReceiveAnswer, msg.Type)
	assert.Equal(t, "conn-1", msg.Payload.From)
	assert.JSONEq(t, string(body), string(msg.Payload.Answer))
}
