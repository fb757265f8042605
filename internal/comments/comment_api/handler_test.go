package comment_api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawnema/internal/comments"
	"clawnema/internal/comments/comment_api"
	commentdb "clawnema/internal/comments/db"
	"clawnema/internal/logger"
	"clawnema/internal/models"
	"clawnema/internal/sse"
	"clawnema/internal/testutil"
	tickets "clawnema/internal/tickets/service"
)

type staticSessions map[string]*models.Ticket

func (s staticSessions) Authenticate(_ context.Context, token string) (*models.Ticket, error) {
	if t, ok := s[token]; ok {
		return t, nil
	}
	return nil, tickets.ErrSessionNotFound
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	feed := sse.NewCommentBroadcaster()
	svc := comments.NewCommentService(
		&commentdb.DB{Bun: testutil.NewSQLiteDB(t)},
		staticSessions{"tok-1": {TheaterID: "jazz-live-1", AgentID: "agent-1"}},
		nil,
		feed,
		"",
		logger.NewNopLogger(),
	)
	r := chi.NewRouter()
	comment_api.NewHandler(svc, feed, logger.NewNopLogger()).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/comment", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestPostComment(t *testing.T) {
	srv := setupServer(t)

	status, body := post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1","comment":"Great set","mood":"happy"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Comment posted successfully", body["message"])

	status, body = post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required fields: session_token, agent_id, comment", body["error"])

	status, body = post(t, srv, `{"session_token":"nope","agent_id":"agent-1","comment":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired session token", body["error"])

	long := strings.Repeat("x", 501)
	status, body = post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1","comment":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Comment too long. Maximum 500 characters.", body["error"])
}

func TestListComments(t *testing.T) {
	srv := setupServer(t)
	post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1","comment":"one"}`)
	post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1","comment":"two"}`)

	resp, err := http.Get(srv.URL + "/comments/jazz-live-1?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success  bool                 `json:"success"`
		Comments []models.CommentView `json:"comments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "agent-1", body.Comments[0].AgentID)
}

func TestStreamComments(t *testing.T) {
	srv := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/comments/jazz-live-1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return event, data
			}
		}
	}

	event, _ := readEvent()
	require.Equal(t, "connected", event)

	post(t, srv, `{"session_token":"tok-1","agent_id":"agent-1","comment":"live!"}`)

	event, data := readEvent()
	assert.Equal(t, "comment", event)
	var c models.CommentView
	require.NoError(t, json.Unmarshal([]byte(data), &c))
	assert.Equal(t, "live!", c.Comment)
	assert.Equal(t, "jazz-live-1", c.TheaterID)
}
