package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	VerificationReceipt   = "receipt"
	VerificationLogScan   = "log-scan"
	VerificationSimulated = "simulated"
)

// Ticket is one verified purchase. TxHash holds the canonical on-chain
// transaction id, which can differ from what the agent submitted.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                 string    `bun:"id,pk" json:"id"`
	AgentID            string    `bun:"agent_id,notnull" json:"agent_id"`
	TxHash             string    `bun:"tx_hash,notnull,unique" json:"tx_hash"`
	ClaimedRef         string    `bun:"claimed_ref,notnull" json:"claimed_ref"`
	TheaterID          string    `bun:"theater_id,notnull" json:"theater_id"`
	SessionToken       string    `bun:"session_token,notnull,unique" json:"-"`
	AmountUnits        string    `bun:"amount_units,notnull" json:"amount_units"`
	VerificationMethod string    `bun:"verification_method,notnull" json:"verification_method"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt          time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// IsExpired uses a strict comparison: a ticket is still valid at exactly ExpiresAt.
func (t *Ticket) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TicketIssuedEvent is published after a ticket row has been committed.
type TicketIssuedEvent struct {
	TicketID           string    `json:"ticket_id"`
	AgentID            string    `json:"agent_id"`
	TheaterID          string    `json:"theater_id"`
	TxHash             string    `json:"tx_hash"`
	AmountUnits        string    `json:"amount_units"`
	VerificationMethod string    `json:"verification_method"`
	IssuedAt           time.Time `json:"issued_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}
