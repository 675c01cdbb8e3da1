package redis

import (
	"context"
	"fmt"
	"time"

	"meetrelay/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey = keyPrefix + "schema:version"
	schemaLockKey    = keyPrefix + "schema:lock"

	schemaLockTTL  = 30 * time.Second
	schemaLockWait = 10 * time.Second
)

// Migration upgrades the keyspace from Version-1 to Version.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

var migrations = []Migration{
	{
		Version: 1,
		Up: func(ctx context.Context, client *redis.Client) error {
			// meeting records are self-describing JSON; only stamp when the keyspace was initialized
			return client.SetNX(ctx, keyPrefix+"schema:created_at", time.Now().UTC().Format(time.RFC3339), 0).Err()
		},
	},
}

// Migrate runs all pending migrations. Relays starting against the same
// store take turns through the schema lock.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	lock := distributed.NewLock(client, schemaLockKey, schemaLockTTL)
	if err := lock.LockWithTimeout(ctx, schemaLockWait); err != nil {
		return fmt.Errorf("failed to lock schema: %w", err)
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil && logger != nil {
			logger.Warnw("failed to release schema lock", "error", err)
		}
	}()

	return runMigrations(ctx, client, migrations, logger)
}

func runMigrations(ctx context.Context, client *redis.Client, list []Migration, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range list {
		if m.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", m.Version)
		}
		if err := m.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if err := client.Set(ctx, schemaVersionKey, m.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		currentVersion = m.Version
	}

	if logger != nil {
		logger.Debugw("schema is up to date", "version", currentVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}
