package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxMeetingIDLength = 64
	MaxHostNameLength  = 64
)

var (
	// MeetingIDRegex matches nanoid-style identifiers (and legacy uuid ids).
	MeetingIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateMeetingID validates meeting ID
func ValidateMeetingID(meetingID string) error {
	if meetingID == "" {
		return fmt.Errorf("meeting ID is required")
	}
	if len(meetingID) > MaxMeetingIDLength {
		return fmt.Errorf("meeting ID is too long (max %d characters)", MaxMeetingIDLength)
	}
	if !MeetingIDRegex.MatchString(meetingID) {
		return fmt.Errorf("invalid meeting ID format")
	}
	return nil
}

// ValidateHostName validates the display name a meeting is created for.
// Names are compared verbatim by peers, so control characters are rejected
// rather than stripped.
func ValidateHostName(name string) error {
	if err := ValidateNonEmptyString(name, "host name"); err != nil {
		return err
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("host name contains invalid characters")
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("host name contains control characters")
	}
	return ValidateStringLength(strings.TrimSpace(name), 1, MaxHostNameLength, "host name")
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
