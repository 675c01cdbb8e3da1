package ports

import (
	"context"

	"meetrelay/internal/core/domain"
)

// MeetingRepository is the directory store. It only supports create and
// get; records are immutable and their retention belongs to the backend.
type MeetingRepository interface {
	Create(ctx context.Context, record *domain.MeetingRecord) error
	GetByID(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error)
}
