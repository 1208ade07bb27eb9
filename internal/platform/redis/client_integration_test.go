//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/config"
	"github.com/docsales/realstate-docgen-front-sub000/internal/platform/redis"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	t.Run("unconfigured", func(t *testing.T) {
		client, err := redis.New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("connects", func(t *testing.T) {
		rc := containers.GetManager().GetRedis(t)
		client, err := redis.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 4})
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Health(ctx))
		assert.Equal(t, 4, client.Options().PoolSize)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := redis.New(ctx, config.RedisConfig{URL: "http://nope"})
		require.ErrorContains(t, err, "parse redis URL")
	})
}
