package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"clawnema/internal/database"
	"clawnema/internal/models"
)

var (
	// ErrDuplicateKey means the canonical tx id or session token is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("ticket not found")
)

// DB is the ticket ledger. The unique constraints on tx_hash and session_token
// are the double-spend gate; Insert relies on them rather than a prior read.
type DB struct {
	Bun *bun.DB
}

func normalizeTx(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}

func (d *DB) Insert(ctx context.Context, ticket *models.Ticket) error {
	ticket.TxHash = normalizeTx(ticket.TxHash)
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.ExpiresAt = ticket.ExpiresAt.UTC()

	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (d *DB) FindByCanonicalTxID(ctx context.Context, txHash string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("tx_hash = ?", normalizeTx(txHash)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket by tx: %w", err)
	}
	return &ticket, nil
}

func (d *DB) IsTxUsed(ctx context.Context, txHash string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("tx_hash = ?", normalizeTx(txHash)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check tx usage: %w", err)
	}
	return exists, nil
}

// FindBySessionToken returns the ticket only while now <= expires_at.
func (d *DB) FindBySessionToken(ctx context.Context, token string, now time.Time) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("session_token = ?", token).
		Where("expires_at >= ?", now.UTC()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket by session: %w", err)
	}
	return &ticket, nil
}

// FindAnyBySessionToken ignores expiry.
func (d *DB) FindAnyBySessionToken(ctx context.Context, token string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("session_token = ?", token).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket by session: %w", err)
	}
	return &ticket, nil
}

func (d *DB) ListByAgent(ctx context.Context, agentID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets for agent: %w", err)
	}
	return tickets, nil
}
