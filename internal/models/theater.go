package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Theater struct {
	bun.BaseModel `bun:"table:theaters"`

	ID              string    `bun:"id,pk" json:"id"`
	Title           string    `bun:"title,notnull" json:"title"`
	StreamURL       string    `bun:"stream_url,notnull" json:"stream_url"`
	TicketPriceUSDC float64   `bun:"ticket_price_usdc,notnull" json:"ticket_price_usdc"`
	Description     string    `bun:"description" json:"description"`
	IsActive        bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

// TheaterSummary is what a buyer gets back with a session token.
type TheaterSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StreamURL string `json:"stream_url"`
}

func (t *Theater) Summary() TheaterSummary {
	return TheaterSummary{ID: t.ID, Title: t.Title, StreamURL: t.StreamURL}
}

// TheaterPatch carries the optional fields of an admin update.
type TheaterPatch struct {
	Title           *string  `json:"title,omitempty"`
	StreamURL       *string  `json:"stream_url,omitempty"`
	TicketPriceUSDC *float64 `json:"ticket_price_usdc,omitempty"`
	Description     *string  `json:"description,omitempty"`
	IsActive        *bool    `json:"is_active,omitempty"`
}

func (p TheaterPatch) IsEmpty() bool {
	return p.Title == nil && p.StreamURL == nil && p.TicketPriceUSDC == nil && p.Description == nil && p.IsActive == nil
}
