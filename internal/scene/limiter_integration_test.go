//go:build integration

package scene

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisLimiter_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	l := NewRedisLimiter(client, 2*time.Second)
	now := time.Now()

	ok, _, err := l.Reserve(ctx, "tok", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, wait, err := l.Reserve(ctx, "tok", now.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1500*time.Millisecond, wait)

	ttl, err := client.PTTL(ctx, "watch_rate:tok").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 2*time.Second)
}
