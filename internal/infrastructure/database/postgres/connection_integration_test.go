//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
)

func startPostgres(t *testing.T) postgres.PostgresConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "claimlens_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return postgres.PostgresConfig{
		Host: host, Port: port.Int(), Database: "claimlens_test",
		Username: "test", Password: "test",
	}
}

func TestMigrator_UpDownAgainstContainer(t *testing.T) {
	conn, err := postgres.NewConnection(startPostgres(t), nil)
	require.NoError(t, err)
	defer conn.Close()

	m, err := postgres.NewMigrator(conn.DB(), nil)
	require.NoError(t, err)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up())
	v, dirty, err := m.Status()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)

	var n int
	require.NoError(t, conn.DB().QueryRow(`SELECT COUNT(*) FROM claims`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, m.Down(2))
	v, _, err = m.Status()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.NoError(t, conn.HealthCheck(context.Background()))
}
