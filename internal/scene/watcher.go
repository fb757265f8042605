package scene

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clawnema/internal/logger"
	"clawnema/internal/models"
	theaterdb "clawnema/internal/theaters/db"
	tickets "clawnema/internal/tickets/service"
)

const (
	FallbackWarning     = "Trio API unavailable, using cached response"
	DegradedWarning     = "Scene analysis temporarily unavailable"
	DegradedDescription = "A captivating scene unfolds on screen."
)

var (
	ErrMissingToken    = errors.New("missing session token")
	ErrUnauthorized    = errors.New("invalid or expired session token")
	ErrTheaterNotFound = errors.New("theater not found")
	ErrWrongTheater    = errors.New("session token is for another theater")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited for %ds", e.Seconds())
}

func (e *RateLimitedError) Seconds() int {
	return RetryAfterSeconds(e.RetryAfter)
}

type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Ticket, error)
}

type TheaterLookup interface {
	Get(ctx context.Context, id string) (*models.Theater, error)
}

type SceneDescriber interface {
	Describe(ctx context.Context, streamURL string) Description
}

type View struct {
	SceneDescription string    `json:"scene_description"`
	Timestamp        time.Time `json:"timestamp"`
	TheaterID        string    `json:"theater_id"`
	StreamURL        string    `json:"stream_url,omitempty"`
	RateLimitSeconds int       `json:"rate_limit_seconds"`
	Warning          string    `json:"warning,omitempty"`
	UsedFallback     bool      `json:"-"`
	Attempts         int       `json:"-"`
}

type Watcher struct {
	Sessions  SessionAuthenticator
	Theaters  TheaterLookup
	Limiter   Limiter
	Describer SceneDescriber
	Window    time.Duration
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewWatcher(sessions SessionAuthenticator, theaters TheaterLookup, limiter Limiter, describer SceneDescriber, window time.Duration, l *logger.Logger) *Watcher {
	return &Watcher{
		Sessions:  sessions,
		Theaters:  theaters,
		Limiter:   limiter,
		Describer: describer,
		Window:    window,
		Logger:    l,
		Now:       time.Now,
	}
}

// Watch runs the gates in order: session, theater, rate window. Only a
// request that will reach the upstream charges the window, and it is charged
// before the call so a failing upstream still throttles the caller.
func (w *Watcher) Watch(ctx context.Context, token, theaterID string) (*View, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	ticket, err := w.Sessions.Authenticate(ctx, token)
	if errors.Is(err, tickets.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	if theaterID == "" {
		theaterID = ticket.TheaterID
	}
	if theaterID != ticket.TheaterID {
		w.Logger.LogSecurity("THEATER_MISMATCH", fmt.Sprintf("Agent %q used a %s ticket for %s", ticket.AgentID, ticket.TheaterID, theaterID))
		return nil, ErrWrongTheater
	}

	theater, err := w.Theaters.Get(ctx, theaterID)
	if errors.Is(err, theaterdb.ErrNotFound) {
		return nil, ErrTheaterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	now := w.now()
	allowed, wait, err := w.Limiter.Reserve(ctx, token, now)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !allowed {
		return nil, &RateLimitedError{RetryAfter: wait}
	}

	desc := w.Describer.Describe(ctx, theater.StreamURL)
	view := &View{
		SceneDescription: desc.Text,
		Timestamp:        desc.Timestamp,
		TheaterID:        theater.ID,
		StreamURL:        theater.StreamURL,
		RateLimitSeconds: w.WindowSeconds(),
		UsedFallback:     desc.UsedFallback,
		Attempts:         desc.Attempts,
	}
	if view.Timestamp.IsZero() {
		view.Timestamp = now
	}
	if desc.UsedFallback {
		view.Warning = FallbackWarning
		w.Logger.Warn("WATCH", fmt.Sprintf("Returning fallback response after %d attempts", desc.Attempts))
	}
	return view, nil
}

// Degraded is the body served when Watch fails for internal reasons.
func (w *Watcher) Degraded(theaterID string) *View {
	if theaterID == "" {
		theaterID = "unknown"
	}
	return &View{
		SceneDescription: DegradedDescription,
		Timestamp:        w.now(),
		TheaterID:        theaterID,
		RateLimitSeconds: w.WindowSeconds(),
		Warning:          DegradedWarning,
		UsedFallback:     true,
	}
}

func (w *Watcher) WindowSeconds() int {
	return int(w.Window / time.Second)
}

func (w *Watcher) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
