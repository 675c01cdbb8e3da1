package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "meetrelay:"

type RedisMeetingRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMeetingRepository stores meeting records as JSON strings. A zero
// ttl keeps records forever.
func NewRedisMeetingRepository(client *redis.Client, ttl time.Duration) ports.MeetingRepository {
	return &RedisMeetingRepository{
		client: client,
		prefix: keyPrefix + "meeting:",
		ttl:    ttl,
	}
}

func (r *RedisMeetingRepository) meetingKey(id domain.MeetingID) string {
	return r.prefix + string(id)
}

func (r *RedisMeetingRepository) Create(ctx context.Context, record *domain.MeetingRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.meetingKey(record.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set meeting in Redis: %w", err)
	}
	if !ok {
		return domain.ErrMeetingExists
	}
	return nil
}

func (r *RedisMeetingRepository) GetByID(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	data, err := r.client.Get(ctx, r.meetingKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting from Redis: %w", err)
	}

	var record domain.MeetingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meeting %s: %w", id, err)
	}
	// records written by older clients carry only {"name": ...}
	if record.ID == "" {
		record.ID = id
	}

	return &record, nil
}
