package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawnema/internal/comments/db"
	"clawnema/internal/models"
	"clawnema/internal/testutil"
)

func setupStore(t *testing.T) *db.DB {
	t.Helper()
	bunDB := testutil.NewSQLiteDB(t)
	_, err := bunDB.NewInsert().Model(&models.Theater{
		ID: "jazz-live-1", Title: "Jazz", StreamURL: "https://youtu.be/j", TicketPriceUSDC: 1, IsActive: true, CreatedAt: time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)
	return &db.DB{Bun: bunDB}
}

func TestCreateAndListByTheater(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	base := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		c := &models.Comment{
			SessionToken: "tok-1",
			TheaterID:    "jazz-live-1",
			AgentID:      "agent-1",
			Comment:      text,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(ctx, c))
		assert.NotZero(t, c.ID)
	}

	got, err := store.ListByTheater(ctx, "jazz-live-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Comment, "newest first")
	assert.Equal(t, "second", got[1].Comment)

	none, err := store.ListByTheater(ctx, "space-live-1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListBySession(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.Create(ctx, &models.Comment{SessionToken: "tok-1", TheaterID: "jazz-live-1", AgentID: "a", Comment: "x", Mood: "happy"}))
	require.NoError(t, store.Create(ctx, &models.Comment{SessionToken: "tok-2", TheaterID: "jazz-live-1", AgentID: "b", Comment: "y"}))

	got, err := store.ListBySession(ctx, "tok-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "happy", got[0].Mood)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, db.DefaultLimit, db.ClampLimit(0))
	assert.Equal(t, db.DefaultLimit, db.ClampLimit(-5))
	assert.Equal(t, 20, db.ClampLimit(20))
	assert.Equal(t, db.MaxLimit, db.ClampLimit(10_000))
}
