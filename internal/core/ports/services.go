package ports

import (
	"context"

	"meetrelay/internal/core/domain"
)

type MeetingService interface {
	CreateMeeting(ctx context.Context, hostName string) (*domain.MeetingRecord, error)
	GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error)
}
