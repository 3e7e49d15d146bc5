//go:build integration

package cli

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/classvsoftware/t3api-utils/internal/testutil"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start %s", req.Image)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// TestCollectionToPostgres runs the whole pipeline: credential auth, a
// cached parallel load and a PostgreSQL export.
func TestCollectionToPostgres(t *testing.T) {
	env := setupEnv(t)
	env.mock.SetCollection("/v2/packages/active", testutil.Collection{Total: 25})

	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379")

	pgAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "t3",
			"POSTGRES_PASSWORD": "t3",
			"POSTGRES_DB":       "t3",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	t.Setenv("T3_REDIS_ADDR", redisAddr)
	t.Setenv("T3_POSTGRES_DSN", fmt.Sprintf("postgres://t3:t3@%s/t3?sslmode=disable", pgAddr))

	args := []string{"collection", "/v2/packages/active",
		"--license", testutil.TestLicense,
		"--page-size", "10",
		"--format", "postgres",
		"--no-progress"}

	out, err := env.run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "packages_active: 25 rows")
	assert.Contains(t, out, "packages_active")
	for page := 1; page <= 3; page++ {
		assert.Equal(t, 1, env.mock.PageRequests(page), "page %d", page)
	}

	// A second run is answered from the cache
	out, err = env.run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "packages_active: 25 rows")
	for page := 1; page <= 3; page++ {
		assert.Equal(t, 1, env.mock.PageRequests(page), "page %d", page)
	}
}
