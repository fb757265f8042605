//go:build integration

package migrations_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"clawnema/internal/config"
	"clawnema/internal/database"
	"clawnema/internal/database/migrations"
	"clawnema/internal/logger"
	"clawnema/internal/models"
	theaterdb "clawnema/internal/theaters/db"
	ticketdb "clawnema/internal/tickets/db"
)

func TestMigrateUp_RealPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "clawnema",
				"POSTGRES_PASSWORD": "clawnema",
				"POSTGRES_DB":       "clawnema",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	l := logger.NewNopLogger()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{
		Driver:       "postgres",
		DSN:          fmt.Sprintf("postgres://clawnema:clawnema@%s:%s/clawnema?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 5,
		MaxLifetime:  time.Minute,
	}, l)
	require.NoError(t, err)

	runner := migrations.NewRunner(bunDB, l)
	require.NoError(t, runner.MigrateUp())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	theaters := &theaterdb.DB{Bun: bunDB}
	n, err := theaters.Seed(ctx, theaterdb.DefaultTheaters, l)
	require.NoError(t, err)
	assert.Equal(t, len(theaterdb.DefaultTheaters), n)

	ledger := &ticketdb.DB{Bun: bunDB}
	ticket := &models.Ticket{
		ID:                 "t-1",
		AgentID:            "agent-007",
		TxHash:             "0xAbC",
		ClaimedRef:         "0xabc",
		TheaterID:          theaterdb.DefaultTheaters[0].ID,
		SessionToken:       "sess-1",
		AmountUnits:        "1000000",
		VerificationMethod: models.VerificationReceipt,
		CreatedAt:          time.Now(),
		ExpiresAt:          time.Now().Add(time.Hour),
	}
	require.NoError(t, ledger.Insert(ctx, ticket))

	dup := *ticket
	dup.ID = "t-2"
	dup.SessionToken = "sess-2"
	err = ledger.Insert(ctx, &dup)
	assert.ErrorIs(t, err, ticketdb.ErrDuplicateKey, "tx_hash is unique in the Postgres schema too")

	used, err := ledger.IsTxUsed(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, used)

	// closing the runner also closes the shared connection pool
	require.NoError(t, runner.MigrateDown())
	require.NoError(t, runner.Close())
}
