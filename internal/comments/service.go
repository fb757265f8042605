package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"clawnema/internal/logger"
	"clawnema/internal/models"
	tickets "clawnema/internal/tickets/service"
)

var (
	ErrMissingFields = errors.New("missing required comment fields")
	ErrUnauthorized  = errors.New("invalid or expired session token")
	ErrTooLong       = fmt.Errorf("comment longer than %d characters", models.MaxCommentLength)
)

type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByTheater(ctx context.Context, theaterID string, limit int) ([]models.Comment, error)
}

type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Ticket, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Broadcaster interface {
	Emit(comment models.CommentView) int
}

type CommentService struct {
	Store       CommentStore
	Sessions    SessionAuthenticator
	Publisher   EventPublisher
	Broadcaster Broadcaster
	Topic       string
	// PublishTimeout bounds the best-effort event write; zero means two seconds.
	PublishTimeout time.Duration
	Logger         *logger.Logger
	Now            func() time.Time
}

const defaultPublishTimeout = 2 * time.Second

// NewCommentService wires the store. Broadcaster may be nil when the live feed
// is driven by the event consumer instead.
func NewCommentService(store CommentStore, sessions SessionAuthenticator, publisher EventPublisher, broadcaster Broadcaster, topic string, l *logger.Logger) *CommentService {
	return &CommentService{
		Store:       store,
		Sessions:    sessions,
		Publisher:   publisher,
		Broadcaster: broadcaster,
		Topic:       topic,
		Logger:      l,
		Now:         time.Now,
	}
}

// Post stores a reaction for the theater the session was bought for.
func (s *CommentService) Post(ctx context.Context, token, agentID, text, mood string) (*models.Comment, error) {
	token = strings.TrimSpace(token)
	agentID = strings.TrimSpace(agentID)
	if token == "" || agentID == "" || strings.TrimSpace(text) == "" {
		return nil, ErrMissingFields
	}

	ticket, err := s.Sessions.Authenticate(ctx, token)
	if errors.Is(err, tickets.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("post comment: %w", err)
	}

	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return nil, ErrTooLong
	}

	comment := &models.Comment{
		SessionToken: token,
		TheaterID:    ticket.TheaterID,
		AgentID:      agentID,
		Comment:      text,
		Mood:         strings.TrimSpace(mood),
		CreatedAt:    s.Now().UTC(),
	}
	if err := s.Store.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("post comment: %w", err)
	}
	s.Logger.Info("COMMENT", fmt.Sprintf("Agent %q commented on %s", agentID, comment.TheaterID))

	view := comment.View()
	if s.Broadcaster != nil {
		s.Broadcaster.Emit(view)
	}
	s.publishPosted(ctx, view)
	return comment, nil
}

// publishPosted is best effort; the comment is already stored.
func (s *CommentService) publishPosted(ctx context.Context, view models.CommentView) {
	if s.Publisher == nil {
		return
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Publisher.Publish(pubCtx, s.Topic, view.TheaterID, models.CommentPostedEvent{Comment: view}); err != nil {
		s.Logger.Warn("COMMENT", fmt.Sprintf("Failed to publish comment event: %v", err))
	}
}

func (s *CommentService) List(ctx context.Context, theaterID string, limit int) ([]models.CommentView, error) {
	stored, err := s.Store.ListByTheater(ctx, theaterID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]models.CommentView, 0, len(stored))
	for i := range stored {
		views = append(views, stored[i].View())
	}
	return views, nil
}
