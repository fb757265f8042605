package comment_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clawnema/internal/comments"
	"clawnema/internal/logger"
	"clawnema/internal/models"
	"clawnema/internal/utils"
)

type CommentService interface {
	Post(ctx context.Context, token, agentID, text, mood string) (*models.Comment, error)
	List(ctx context.Context, theaterID string, limit int) ([]models.CommentView, error)
}

type Feed interface {
	Subscribe(ctx context.Context, theaterID string) <-chan models.CommentView
}

type Handler struct {
	Service CommentService
	Feed    Feed
	Logger  *logger.Logger
}

func NewHandler(svc CommentService, feed Feed, l *logger.Logger) *Handler {
	return &Handler{Service: svc, Feed: feed, Logger: l}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/comment", h.PostComment)
	r.Get("/comments/{theater_id}", h.ListComments)
	r.Get("/comments/{theater_id}/stream", h.StreamComments)
}

type postRequest struct {
	SessionToken string `json:"session_token"`
	AgentID      string `json:"agent_id"`
	Comment      string `json:"comment"`
	Mood         string `json:"mood"`
}

func (h *Handler) PostComment(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Failure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	_, err := h.Service.Post(r.Context(), req.SessionToken, req.AgentID, req.Comment, req.Mood)
	switch {
	case err == nil:
		utils.Success(w, http.StatusOK, utils.Body{"message": "Comment posted successfully"})
	case errors.Is(err, comments.ErrMissingFields):
		utils.Failure(w, http.StatusBadRequest, "Missing required fields: session_token, agent_id, comment", nil)
	case errors.Is(err, comments.ErrTooLong):
		utils.Failure(w, http.StatusBadRequest, fmt.Sprintf("Comment too long. Maximum %d characters.", models.MaxCommentLength), nil)
	case errors.Is(err, comments.ErrUnauthorized):
		utils.Failure(w, http.StatusUnauthorized, "Invalid or expired session token", nil)
	default:
		h.Logger.Error("COMMENT", fmt.Sprintf("Error posting comment: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to post comment", nil)
	}
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	views, err := h.Service.List(r.Context(), chi.URLParam(r, "theater_id"), limit)
	if err != nil {
		h.Logger.Error("COMMENT", fmt.Sprintf("Error fetching comments: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch comments", nil)
		return
	}
	utils.Success(w, http.StatusOK, utils.Body{"comments": views})
}

// StreamComments pushes every new comment for the theater as an SSE "comment" event.
func (h *Handler) StreamComments(w http.ResponseWriter, r *http.Request) {
	theaterID := chi.URLParam(r, "theater_id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.Failure(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	feed := h.Feed.Subscribe(ctx, theaterID)

	hello, _ := json.Marshal(map[string]string{"status": "connected", "theater_id": theaterID})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", hello)
	flusher.Flush()
	h.Logger.Debug("SSE", fmt.Sprintf("Client connected to comment feed for %s", theaterID))

	for {
		select {
		case comment, ok := <-feed:
			if !ok {
				return
			}
			data, err := json.Marshal(comment)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize comment: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: comment\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from comment feed for %s", theaterID))
			return
		}
	}
}
