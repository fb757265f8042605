package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"clawnema/internal/models"
)

// DB runs the read-only aggregate queries behind /stats and the admin dashboard.
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

type AgentCount struct {
	AgentID      string `bun:"agent_id" json:"agent_id"`
	CommentCount int    `bun:"comment_count" json:"comment_count"`
}

type MoodCount struct {
	Mood  string `bun:"mood" json:"mood"`
	Count int    `bun:"count" json:"count"`
}

// TheaterComments is the comment activity of one theater.
type TheaterComments struct {
	TheaterID    string `bun:"theater_id"`
	CommentCount int    `bun:"comment_count"`
	UniqueAgents int    `bun:"unique_agents"`
}

func (db *DB) CountDistinctAgents(ctx context.Context) (int, error) {
	var n int
	err := db.bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COUNT(DISTINCT agent_id)").
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return n, nil
}

func (db *DB) CountTickets(ctx context.Context) (int, error) {
	n, err := db.bun.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (db *DB) CountComments(ctx context.Context) (int, error) {
	n, err := db.bun.NewSelect().Model((*models.Comment)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

// CountCommentingSessions counts sessions that posted at least one comment.
func (db *DB) CountCommentingSessions(ctx context.Context) (int, error) {
	var n int
	err := db.bun.NewSelect().
		Model((*models.Comment)(nil)).
		ColumnExpr("COUNT(DISTINCT session_token)").
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("count commenting sessions: %w", err)
	}
	return n, nil
}

// CountActiveSessions counts tickets still valid at now.
func (db *DB) CountActiveSessions(ctx context.Context, now time.Time) (int, error) {
	n, err := db.bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("expires_at >= ?", now.UTC()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}

func (db *DB) TopCommenters(ctx context.Context, limit int) ([]AgentCount, error) {
	rows := []AgentCount{}
	err := db.bun.NewSelect().
		Model((*models.Comment)(nil)).
		ColumnExpr("agent_id").
		ColumnExpr("COUNT(*) AS comment_count").
		Group("agent_id").
		OrderExpr("comment_count DESC, agent_id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("top commenters: %w", err)
	}
	return rows, nil
}

func (db *DB) MoodDistribution(ctx context.Context) ([]MoodCount, error) {
	rows := []MoodCount{}
	err := db.bun.NewSelect().
		Model((*models.Comment)(nil)).
		ColumnExpr("mood").
		ColumnExpr("COUNT(*) AS count").
		Where("mood IS NOT NULL AND mood != ''").
		Group("mood").
		OrderExpr("count DESC, mood ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("mood distribution: %w", err)
	}
	return rows, nil
}

func (db *DB) CommentsByTheater(ctx context.Context) ([]TheaterComments, error) {
	rows := []TheaterComments{}
	err := db.bun.NewSelect().
		Model((*models.Comment)(nil)).
		ColumnExpr("theater_id").
		ColumnExpr("COUNT(*) AS comment_count").
		ColumnExpr("COUNT(DISTINCT agent_id) AS unique_agents").
		Group("theater_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("comments by theater: %w", err)
	}
	return rows, nil
}

// Tickets loads the columns revenue and growth stats are computed from.
// amount_units is a decimal string, so sums are done in Go.
func (db *DB) Tickets(ctx context.Context) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := db.bun.NewSelect().
		Model(&tickets).
		Column("id", "agent_id", "theater_id", "amount_units", "verification_method", "created_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return tickets, nil
}

func (db *DB) CommentTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := db.bun.NewSelect().
		Model((*models.Comment)(nil)).
		Column("created_at").
		Where("created_at >= ?", since.UTC()).
		Scan(ctx, &times)
	if err != nil {
		return nil, fmt.Errorf("load comment times: %w", err)
	}
	return times, nil
}

func (db *DB) Theaters(ctx context.Context) ([]models.Theater, error) {
	theaters := []models.Theater{}
	err := db.bun.NewSelect().Model(&theaters).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load theaters: %w", err)
	}
	return theaters, nil
}
