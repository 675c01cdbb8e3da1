package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"
	"meetrelay/pkg/utils"
	"meetrelay/pkg/validation"
)

type meetingService struct {
	meetingRepo    ports.MeetingRepository
	idLength       int
	createAttempts int
	generateID     func(length int) (string, error)
	now            func() time.Time
}

func NewMeetingService(meetingRepo ports.MeetingRepository, idLength, createAttempts int) ports.MeetingService {
	if createAttempts <= 0 {
		createAttempts = 1
	}
	return &meetingService{
		meetingRepo:    meetingRepo,
		idLength:       idLength,
		createAttempts: createAttempts,
		generateID:     utils.GenerateMeetingID,
		now:            time.Now,
	}
}

// CreateMeeting allocates a fresh meeting ID for hostName. Only an ID
// collision is retried; a store failure is returned as is.
func (s *meetingService) CreateMeeting(ctx context.Context, hostName string) (*domain.MeetingRecord, error) {
	if err := validation.ValidateHostName(hostName); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidHostName, err)
	}

	for attempt := 0; attempt < s.createAttempts; attempt++ {
		id, err := s.generateID(s.idLength)
		if err != nil {
			return nil, err
		}

		record := &domain.MeetingRecord{
			ID:        domain.MeetingID(id),
			HostName:  strings.TrimSpace(hostName),
			CreatedAt: s.now().UTC(),
		}

		err = s.meetingRepo.Create(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, domain.ErrMeetingExists) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("could not allocate a unique meeting id after %d attempts: %w",
		s.createAttempts, domain.ErrMeetingExists)
}

// GetMeeting treats a malformed ID as an unknown meeting.
func (s *meetingService) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	if err := validation.ValidateMeetingID(string(id)); err != nil {
		return nil, domain.ErrMeetingNotFound
	}
	return s.meetingRepo.GetByID(ctx, id)
}
