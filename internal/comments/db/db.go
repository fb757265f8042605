package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"clawnema/internal/models"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type DB struct {
	Bun *bun.DB
}

// ClampLimit maps a missing or non-positive limit to DefaultLimit and caps it at MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (d *DB) Create(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	comment.CreatedAt = comment.CreatedAt.UTC()

	_, err := d.Bun.NewInsert().Model(comment).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListByTheater returns the newest comments first.
func (d *DB) ListByTheater(ctx context.Context, theaterID string, limit int) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := d.Bun.NewSelect().
		Model(&comments).
		Where("theater_id = ?", theaterID).
		Order("created_at DESC", "id DESC").
		Limit(ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", theaterID, err)
	}
	return comments, nil
}

func (d *DB) ListBySession(ctx context.Context, token string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := d.Bun.NewSelect().
		Model(&comments).
		Where("session_token = ?", token).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list comments for session: %w", err)
	}
	return comments, nil
}
