package repositories

import (
	"context"

	"meetrelay/internal/core/ports"
	"meetrelay/internal/infrastructure/repositories/memory"
	redisrepo "meetrelay/internal/infrastructure/repositories/redis"
	"meetrelay/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled. An unreachable Redis
// is not fatal; the factory falls back to the in-memory store.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
		}
	}

	logger.Infow("meeting directory backend selected", "backend", factory.Backend())
	return factory
}

// Backend names the store in use
func (f *RepositoryFactory) Backend() string {
	if f.useRedis && f.redisClient != nil {
		return BackendRedis
	}
	return BackendMemory
}

// CreateMeetingRepository creates a meeting repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateMeetingRepository() ports.MeetingRepository {
	if f.Backend() == BackendRedis {
		return redisrepo.NewRedisMeetingRepository(f.redisClient, f.cfg.Redis.MeetingTTL)
	}
	if f.cfg.Redis.MeetingTTL > 0 {
		f.logger.Warnw("redis.meeting_ttl is ignored by the memory backend",
			"meeting_ttl", f.cfg.Redis.MeetingTTL,
		)
	}
	return memory.NewMemoryMeetingRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
