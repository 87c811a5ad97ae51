// Package testhelpers starts the containers used by integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/config"
	"github.com/ekaya-inc/ekaya-admin/pkg/database"
	"github.com/ekaya-inc/ekaya-admin/pkg/retry"
)

// RedisImage is the Redis image the session store is tested against.
const RedisImage = "redis:7-alpine"

// TestRedis holds a shared Redis container and a client connected to it.
type TestRedis struct {
	Container testcontainers.Container
	Client    *redis.Client
	Config    config.RedisConfig
}

var (
	sharedRedis     *TestRedis
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetTestRedis returns a shared Redis container for integration tests.
// The container is created once and reused across all tests in the run,
// so tests must use distinct keys.
func GetTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedis, sharedRedisErr = setupTestRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup test Redis: %v", sharedRedisErr)
	}

	return sharedRedis
}

func setupTestRedis() (*TestRedis, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", port.Port(), err)
	}

	cfg := config.RedisConfig{Host: host, Port: portNum}
	client, err := database.NewRedisClient(ctx, &cfg, retry.DefaultConfig(), zap.NewNop())
	if err != nil {
		return nil, err
	}

	return &TestRedis{
		Container: container,
		Client:    client,
		Config:    cfg,
	}, nil
}
