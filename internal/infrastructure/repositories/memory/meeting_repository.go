package memory

import (
	"context"
	"sync"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"
)

type MemoryMeetingRepository struct {
	meetings map[domain.MeetingID]domain.MeetingRecord
	mu       sync.RWMutex
}

func NewMemoryMeetingRepository() ports.MeetingRepository {
	return &MemoryMeetingRepository{
		meetings: make(map[domain.MeetingID]domain.MeetingRecord),
	}
}

func (r *MemoryMeetingRepository) Create(ctx context.Context, record *domain.MeetingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.meetings[record.ID]; exists {
		return domain.ErrMeetingExists
	}

	r.meetings[record.ID] = *record
	return nil
}

func (r *MemoryMeetingRepository) GetByID(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.meetings[id]
	if !exists {
		return nil, domain.ErrMeetingNotFound
	}

	return &record, nil
}
