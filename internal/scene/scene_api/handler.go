package scene_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clawnema/internal/logger"
	"clawnema/internal/scene"
	"clawnema/internal/utils"
)

type SceneWatcher interface {
	Watch(ctx context.Context, token, theaterID string) (*scene.View, error)
	Degraded(theaterID string) *scene.View
	WindowSeconds() int
}

type Handler struct {
	Watcher SceneWatcher
	Logger  *logger.Logger
}

func NewHandler(w SceneWatcher, l *logger.Logger) *Handler {
	return &Handler{Watcher: w, Logger: l}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/watch", h.Watch)
}

// Watch answers GET /watch?session_token=&theater_id=. Internal failures are
// served as a degraded 200 so callers always get a description.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("session_token")
	theaterID := r.URL.Query().Get("theater_id")
	w.Header().Set("X-RateLimit-Window", strconv.Itoa(h.Watcher.WindowSeconds()))

	view, err := h.Watcher.Watch(r.Context(), token, theaterID)
	if err == nil {
		utils.Success(w, http.StatusOK, viewBody(view))
		return
	}

	var rl *scene.RateLimitedError
	switch {
	case errors.Is(err, scene.ErrMissingToken):
		utils.Failure(w, http.StatusBadRequest, "Missing session_token", nil)
	case errors.Is(err, scene.ErrUnauthorized):
		utils.Failure(w, http.StatusUnauthorized, "Invalid or expired session token", nil)
	case errors.Is(err, scene.ErrWrongTheater):
		utils.Failure(w, http.StatusForbidden, "Session token is not valid for this theater", nil)
	case errors.Is(err, scene.ErrTheaterNotFound):
		utils.Failure(w, http.StatusNotFound, "Theater not found", nil)
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(rl.Seconds()))
		msg := fmt.Sprintf("Rate limited. Please wait %d seconds.", rl.Seconds())
		utils.Failure(w, http.StatusTooManyRequests, msg, utils.Body{"retry_after": rl.Seconds()})
	default:
		h.Logger.Error("WATCH", fmt.Sprintf("Watch failed, serving degraded response: %v", err))
		utils.Success(w, http.StatusOK, viewBody(h.Watcher.Degraded(theaterID)))
	}
}

func viewBody(v *scene.View) utils.Body {
	body := utils.Body{
		"scene_description":  v.SceneDescription,
		"timestamp":          v.Timestamp,
		"theater_id":         v.TheaterID,
		"rate_limit_seconds": v.RateLimitSeconds,
	}
	if v.StreamURL != "" {
		body["stream_url"] = v.StreamURL
	}
	if v.Warning != "" {
		body["warning"] = v.Warning
	}
	return body
}
