package models

import (
	"time"

	"github.com/uptrace/bun"
)

const MaxCommentLength = 500

type Comment struct {
	bun.BaseModel `bun:"table:comments"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	SessionToken string    `bun:"session_token,notnull" json:"-"`
	TheaterID    string    `bun:"theater_id,notnull" json:"theater_id"`
	AgentID      string    `bun:"agent_id,notnull" json:"agent_id"`
	Comment      string    `bun:"comment,notnull" json:"comment"`
	Mood         string    `bun:"mood" json:"mood,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

// CommentView is the public shape of a comment; it never carries the session token.
type CommentView struct {
	ID        int64     `json:"id"`
	TheaterID string    `json:"theater_id"`
	AgentID   string    `json:"agent_id"`
	Comment   string    `json:"comment"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) View() CommentView {
	return CommentView{
		ID:        c.ID,
		TheaterID: c.TheaterID,
		AgentID:   c.AgentID,
		Comment:   c.Comment,
		Mood:      c.Mood,
		CreatedAt: c.CreatedAt,
	}
}

// CommentPostedEvent is published for every stored comment.
type CommentPostedEvent struct {
	Comment CommentView `json:"comment"`
}
