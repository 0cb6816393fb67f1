//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/redis"
)

// RedisContainer holds a Redis instance reached through the same client
// the movement service uses for idempotency records.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7.4-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err == nil {
		var client *redis.Client
		client, err = redis.New(ctx, config.RedisConfig{URL: url, PoolSize: 32})
		if err == nil {
			return &RedisContainer{Container: container, URL: url, Client: client}
		}
	}
	_ = container.Terminate(ctx)
	t.Fatalf("connect redis: %v", err)
	return nil
}

// FlushAll clears the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
