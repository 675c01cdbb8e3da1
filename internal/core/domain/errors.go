package domain

import "errors"

var (
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrMeetingExists     = errors.New("meeting already exists")
	ErrStoreUnavailable  = errors.New("meeting store unavailable")
	ErrInvalidHostName   = errors.New("invalid host name")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrConnectionUnknown = errors.New("connection not registered")
)
