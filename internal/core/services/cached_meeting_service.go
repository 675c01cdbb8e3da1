package services

import (
	"context"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedMeetingService wraps MeetingService with a read-through cache.
// Meeting records never change once created, so a cached record can only be
// stale if the backend expired it. Misses and errors are not cached.
type CachedMeetingService struct {
	baseService ports.MeetingService
	cache       *expirable.LRU[domain.MeetingID, domain.MeetingRecord]
}

func NewCachedMeetingService(baseService ports.MeetingService, size int, ttl time.Duration) *CachedMeetingService {
	return &CachedMeetingService{
		baseService: baseService,
		cache:       expirable.NewLRU[domain.MeetingID, domain.MeetingRecord](size, nil, ttl),
	}
}

func (s *CachedMeetingService) CreateMeeting(ctx context.Context, hostName string) (*domain.MeetingRecord, error) {
	record, err := s.baseService.CreateMeeting(ctx, hostName)
	if err != nil {
		return nil, err
	}

	// the creator usually looks the meeting up right away
	s.cache.Add(record.ID, *record)
	return record, nil
}

func (s *CachedMeetingService) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	if record, ok := s.cache.Get(id); ok {
		return &record, nil
	}

	record, err := s.baseService.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Add(id, *record)
	return record, nil
}

// Len returns the number of cached records
func (s *CachedMeetingService) Len() int {
	return s.cache.Len()
}
