package domain

import (
	"strings"
	"time"
)

type MeetingID string

// MeetingRecord is the directory entry for a meeting. It is never updated
// after creation.
type MeetingRecord struct {
	ID        MeetingID `json:"meetingId"`
	HostName  string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// DetermineRole compares the locally known display name with the host name
// recorded for the meeting. It is evaluated once, when the peer learns the
// meeting record.
func DetermineRole(record *MeetingRecord, displayName string) Role {
	if record == nil {
		return RoleGuest
	}
	name := strings.TrimSpace(displayName)
	if name != "" && name == strings.TrimSpace(record.HostName) {
		return RoleHost
	}
	return RoleGuest
}

func (r Role) IsHost() bool {
	return r == RoleHost
}
