package utils

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid"
)

// MeetingIDAlphabet avoids characters that need escaping in URLs and Redis keys.
const MeetingIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

const DefaultMeetingIDLength = 12

// GenerateMeetingID generates a short URL-safe meeting ID
func GenerateMeetingID(length int) (string, error) {
	if length <= 0 {
		length = DefaultMeetingIDLength
	}
	id, err := gonanoid.Generate(MeetingIDAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("failed to generate meeting id: %w", err)
	}
	return id, nil
}

// GenerateConnectionID generates a unique connection ID
func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}
