package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"clawnema/internal/models"
	"clawnema/internal/testutil"
	"clawnema/internal/tickets/db"
)

const txA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func setupTestDB(t *testing.T) *db.DB {
	bunDB := testutil.NewSQLiteDB(t)
	_, err := bunDB.NewInsert().Model(&models.Theater{
		ID: "jazz-live-1", Title: "Jazz", StreamURL: "https://youtu.be/x", TicketPriceUSDC: 1.5, IsActive: true, CreatedAt: time.Now().UTC(),
	}).Exec(context.Background())
	require.NoError(t, err)
	return &db.DB{Bun: bunDB}
}

func newTicket(txHash string, expiresAt time.Time) *models.Ticket {
	return &models.Ticket{
		ID:                 uuid.NewString(),
		AgentID:            "agent-007",
		TxHash:             txHash,
		ClaimedRef:         txHash,
		TheaterID:          "jazz-live-1",
		SessionToken:       uuid.NewString(),
		AmountUnits:        "1500000",
		VerificationMethod: models.VerificationReceipt,
		CreatedAt:          time.Now(),
		ExpiresAt:          expiresAt,
	}
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)

	ticket := newTicket("0xAAAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", time.Now().Add(time.Hour))
	require.NoError(t, ledger.Insert(ctx, ticket))

	found, err := ledger.FindByCanonicalTxID(ctx, txA)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, found.ID)
	assert.Equal(t, txA, found.TxHash, "tx hashes are stored lower case")

	used, err := ledger.IsTxUsed(ctx, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = ledger.IsTxUsed(ctx, "0xbbbb")
	require.NoError(t, err)
	assert.False(t, used)

	_, err = ledger.FindByCanonicalTxID(ctx, "0xbbbb")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestInsert_DuplicateCanonicalTx(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)

	require.NoError(t, ledger.Insert(ctx, newTicket(txA, time.Now().Add(time.Hour))))
	err := ledger.Insert(ctx, newTicket(txA, time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, db.ErrDuplicateKey)
}

func TestInsert_DuplicateSessionToken(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)

	first := newTicket(txA, time.Now().Add(time.Hour))
	require.NoError(t, ledger.Insert(ctx, first))

	second := newTicket("0xbbbb", time.Now().Add(time.Hour))
	second.SessionToken = first.SessionToken
	assert.ErrorIs(t, ledger.Insert(ctx, second), db.ErrDuplicateKey)
}

func TestInsert_ConcurrentSameTxOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Insert(ctx, newTicket(txA, time.Now().Add(time.Hour)))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, db.ErrDuplicateKey):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)

	count, err := ledger.Bun.NewSelect().Model((*models.Ticket)(nil)).Where("tx_hash = ?", txA).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindBySessionToken_HonoursExpiry(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	live := newTicket(txA, now.Add(2*time.Hour))
	expired := newTicket("0xbbbb", now.Add(-time.Minute))
	require.NoError(t, ledger.Insert(ctx, live))
	require.NoError(t, ledger.Insert(ctx, expired))

	got, err := ledger.FindBySessionToken(ctx, live.SessionToken, now)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	_, err = ledger.FindBySessionToken(ctx, expired.SessionToken, now)
	assert.ErrorIs(t, err, db.ErrNotFound, "expired tickets are invisible to session lookup")

	got, err = ledger.FindAnyBySessionToken(ctx, expired.SessionToken)
	require.NoError(t, err, "but the row is still stored")
	assert.Equal(t, expired.ID, got.ID)

	_, err = ledger.FindBySessionToken(ctx, live.SessionToken, live.ExpiresAt)
	assert.NoError(t, err, "a ticket is still valid at exactly its expiry instant")

	_, err = ledger.FindBySessionToken(ctx, "unknown", now)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListByAgent(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestDB(t)

	require.NoError(t, ledger.Insert(ctx, newTicket(txA, time.Now().Add(time.Hour))))
	require.NoError(t, ledger.Insert(ctx, newTicket("0xbbbb", time.Now().Add(time.Hour))))

	tickets, err := ledger.ListByAgent(ctx, "agent-007")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestIsTxUsed_PostgresErrorIsWrapped(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqldb.Close()
	})

	ledger := &db.DB{Bun: bun.NewDB(sqldb, pgdialect.New())}
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("connection reset by peer"))

	used, err := ledger.IsTxUsed(context.Background(), txA)
	require.Error(t, err)
	assert.False(t, used)
	assert.Contains(t, err.Error(), "check tx usage")
}
