package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/platform/config"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "not-a-redis-url"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestApplyPoolKeepsURLSettingsForZeroValues(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/2?pool_size=7")
	require.NoError(t, err)

	applyPool(opts, config.RedisConfig{ReadTimeout: 2 * time.Second})
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 2, opts.DB)
}
