package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"clawnema/internal/database"
	"clawnema/internal/models"
)

var (
	ErrNotFound  = errors.New("theater not found")
	ErrDuplicate = errors.New("theater already exists")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) ListActive(ctx context.Context) ([]models.Theater, error) {
	theaters := []models.Theater{}
	err := d.Bun.NewSelect().
		Model(&theaters).
		Where("is_active = ?", true).
		Order("ticket_price_usdc ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active theaters: %w", err)
	}
	return theaters, nil
}

func (d *DB) ListAll(ctx context.Context) ([]models.Theater, error) {
	theaters := []models.Theater{}
	err := d.Bun.NewSelect().
		Model(&theaters).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list theaters: %w", err)
	}
	return theaters, nil
}

// Get returns the theater whether or not it is active.
func (d *DB) Get(ctx context.Context, id string) (*models.Theater, error) {
	var theater models.Theater
	err := d.Bun.NewSelect().
		Model(&theater).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get theater %s: %w", id, err)
	}
	return &theater, nil
}

// GetActive is Get restricted to theaters currently selling tickets.
func (d *DB) GetActive(ctx context.Context, id string) (*models.Theater, error) {
	theater, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !theater.IsActive {
		return nil, ErrNotFound
	}
	return theater, nil
}

func (d *DB) Create(ctx context.Context, theater *models.Theater) error {
	if theater.CreatedAt.IsZero() {
		theater.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(theater).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create theater %s: %w", theater.ID, err)
	}
	return nil
}

// Update applies the non-nil fields of patch and returns the stored row.
func (d *DB) Update(ctx context.Context, id string, patch models.TheaterPatch) (*models.Theater, error) {
	if patch.IsEmpty() {
		return d.Get(ctx, id)
	}

	q := d.Bun.NewUpdate().Model((*models.Theater)(nil)).Where("id = ?", id)
	if patch.Title != nil {
		q = q.Set("title = ?", *patch.Title)
	}
	if patch.StreamURL != nil {
		q = q.Set("stream_url = ?", *patch.StreamURL)
	}
	if patch.TicketPriceUSDC != nil {
		q = q.Set("ticket_price_usdc = ?", *patch.TicketPriceUSDC)
	}
	if patch.Description != nil {
		q = q.Set("description = ?", *patch.Description)
	}
	if patch.IsActive != nil {
		q = q.Set("is_active = ?", *patch.IsActive)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update theater %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return d.Get(ctx, id)
}

// Deactivate takes a theater off the catalog. The row stays so tickets and
// comments keep a valid theater reference.
func (d *DB) Deactivate(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Theater)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate theater %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) CountActive(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.Theater)(nil)).Where("is_active = ?", true).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count theaters: %w", err)
	}
	return n, nil
}
