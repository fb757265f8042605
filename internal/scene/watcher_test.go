package scene

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawnema/internal/logger"
	"clawnema/internal/models"
	theaterdb "clawnema/internal/theaters/db"
	tickets "clawnema/internal/tickets/service"
)

type fakeSessions struct {
	tickets map[string]*models.Ticket
	err     error
}

func (f *fakeSessions) Authenticate(_ context.Context, token string) (*models.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.tickets[token]; ok {
		return t, nil
	}
	return nil, tickets.ErrSessionNotFound
}

type fakeTheaters map[string]*models.Theater

func (f fakeTheaters) Get(_ context.Context, id string) (*models.Theater, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return nil, theaterdb.ErrNotFound
}

type fakeDescriber struct {
	desc  Description
	calls int
}

func (f *fakeDescriber) Describe(context.Context, string) Description {
	f.calls++
	return f.desc
}

var watchNow = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func newTestWatcher(desc Description) (*Watcher, *fakeDescriber) {
	fd := &fakeDescriber{desc: desc}
	w := NewWatcher(
		&fakeSessions{tickets: map[string]*models.Ticket{
			"tok": {ID: "t1", AgentID: "agent-1", TheaterID: "jazz-live-1"},
		}},
		fakeTheaters{"jazz-live-1": {ID: "jazz-live-1", StreamURL: "https://youtu.be/jazz"}},
		NewMemoryLimiter(10*time.Second),
		fd,
		10*time.Second,
		logger.NewNopLogger(),
	)
	w.Now = func() time.Time { return watchNow }
	return w, fd
}

func TestWatch_ReturnsDescription(t *testing.T) {
	w, _ := newTestWatcher(Description{Text: "A saxophonist.", Attempts: 1, Timestamp: watchNow})

	view, err := w.Watch(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Equal(t, "A saxophonist.", view.SceneDescription)
	assert.Equal(t, "jazz-live-1", view.TheaterID)
	assert.Equal(t, "https://youtu.be/jazz", view.StreamURL)
	assert.Equal(t, 10, view.RateLimitSeconds)
	assert.Empty(t, view.Warning)
}

func TestWatch_FallbackCarriesWarning(t *testing.T) {
	w, _ := newTestWatcher(Description{Text: Fallbacks[0], UsedFallback: true})

	view, err := w.Watch(context.Background(), "tok", "jazz-live-1")
	require.NoError(t, err)
	assert.Equal(t, FallbackWarning, view.Warning)
	assert.Equal(t, watchNow, view.Timestamp)
}

func TestWatch_Gates(t *testing.T) {
	w, fd := newTestWatcher(Description{Text: "x"})
	ctx := context.Background()

	_, err := w.Watch(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = w.Watch(ctx, "expired", "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = w.Watch(ctx, "tok", "other-theater")
	assert.ErrorIs(t, err, ErrWrongTheater)

	assert.Equal(t, 0, fd.calls, "no upstream call before every gate passes")
}

func TestWatch_RateLimitedSecondCall(t *testing.T) {
	w, fd := newTestWatcher(Description{Text: "x", UsedFallback: true})
	ctx := context.Background()

	_, err := w.Watch(ctx, "tok", "")
	require.NoError(t, err)

	w.Now = func() time.Time { return watchNow.Add(4 * time.Second) }
	_, err = w.Watch(ctx, "tok", "")
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 6, rl.Seconds())
	assert.Equal(t, "rate limited for 6s", rl.Error())
	assert.Equal(t, 1, fd.calls, "a fallback outcome still charges the window")

	w.Now = func() time.Time { return watchNow.Add(11 * time.Second) }
	_, err = w.Watch(ctx, "tok", "")
	assert.NoError(t, err)
}

func TestWatch_TheaterMissing(t *testing.T) {
	w, _ := newTestWatcher(Description{Text: "x"})
	catalog := fakeTheaters{}
	w.Theaters = catalog

	_, err := w.Watch(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrTheaterNotFound)
	_, err = w.Watch(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrTheaterNotFound, "a missing theater does not charge the window")

	catalog["jazz-live-1"] = &models.Theater{ID: "jazz-live-1", StreamURL: "https://youtu.be/jazz"}
	view, err := w.Watch(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Equal(t, "jazz-live-1", view.TheaterID)
}

func TestWatch_InternalErrorIsWrapped(t *testing.T) {
	w, _ := newTestWatcher(Description{Text: "x"})
	w.Sessions = &fakeSessions{err: errors.New("database is locked")}

	_, err := w.Watch(context.Background(), "tok", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	degraded := w.Degraded("")
	assert.Equal(t, DegradedDescription, degraded.SceneDescription)
	assert.Equal(t, "unknown", degraded.TheaterID)
	assert.Equal(t, DegradedWarning, degraded.Warning)
}
