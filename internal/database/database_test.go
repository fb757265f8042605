package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawnema/internal/config"
	"clawnema/internal/logger"
)

func TestOpen_SQLiteAndCreateSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, logger.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, CreateSchema(ctx, db))
	require.NoError(t, CreateSchema(ctx, db), "schema creation is idempotent")

	for _, table := range []string{"theaters", "tickets", "comments"} {
		var n int
		err := db.NewSelect().ColumnExpr("count(*)").Table("sqlite_master").
			Where("type = 'table' AND name = ?", table).Scan(ctx, &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}, logger.NewNopLogger())
	assert.Error(t, err)
}
