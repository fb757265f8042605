package theater_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clawnema/internal/logger"
	"clawnema/internal/models"
	theaterdb "clawnema/internal/theaters/db"
	"clawnema/internal/utils"
)

type TheaterStore interface {
	ListActive(ctx context.Context) ([]models.Theater, error)
	Get(ctx context.Context, id string) (*models.Theater, error)
	Create(ctx context.Context, theater *models.Theater) error
	Update(ctx context.Context, id string, patch models.TheaterPatch) (*models.Theater, error)
	Deactivate(ctx context.Context, id string) error
}

type Handler struct {
	Store  TheaterStore
	Logger *logger.Logger
}

func NewHandler(store TheaterStore, l *logger.Logger) *Handler {
	return &Handler{Store: store, Logger: l}
}

// Routes mounts the public catalog.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/now-showing", h.NowShowing)
}

// AdminRoutes expects to be mounted behind the admin key middleware.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/theaters", h.CreateTheater)
	r.Patch("/theaters/{id}", h.UpdateTheater)
	r.Delete("/theaters/{id}", h.DeleteTheater)
}

type listing struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	TicketPriceUSDC float64 `json:"ticket_price_usdc"`
	StreamURL       string  `json:"stream_url"`
}

func (h *Handler) NowShowing(w http.ResponseWriter, r *http.Request) {
	theaters, err := h.Store.ListActive(r.Context())
	if err != nil {
		h.Logger.Error("THEATER", fmt.Sprintf("Error fetching theaters: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch theaters", nil)
		return
	}
	out := make([]listing, 0, len(theaters))
	for _, t := range theaters {
		out = append(out, listing{
			ID:              t.ID,
			Title:           t.Title,
			Description:     t.Description,
			TicketPriceUSDC: t.TicketPriceUSDC,
			StreamURL:       t.StreamURL,
		})
	}
	utils.Success(w, http.StatusOK, utils.Body{"theaters": out})
}

// price accepts 1.5 or "1.5".
type price float64

func (p *price) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("ticket_price_usdc: %w", err)
	}
	*p = price(f)
	return nil
}

type createRequest struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	StreamURL       string `json:"stream_url"`
	TicketPriceUSDC price  `json:"ticket_price_usdc"`
	Description     string `json:"description"`
}

func (h *Handler) CreateTheater(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Failure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	theater := &models.Theater{
		ID:              strings.TrimSpace(req.ID),
		Title:           req.Title,
		StreamURL:       req.StreamURL,
		TicketPriceUSDC: float64(req.TicketPriceUSDC),
		Description:     req.Description,
		IsActive:        true,
	}
	if err := theaterdb.ValidateNew(theater); err != nil {
		utils.Failure(w, http.StatusBadRequest, validationMessage(err), nil)
		return
	}

	err := h.Store.Create(r.Context(), theater)
	if errors.Is(err, theaterdb.ErrDuplicate) {
		utils.Failure(w, http.StatusConflict, fmt.Sprintf("Theater %q already exists", theater.ID), nil)
		return
	}
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("Error adding theater: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to add theater", nil)
		return
	}

	h.Logger.Info("ADMIN", fmt.Sprintf("Added theater: %s (%s)", theater.Title, theater.ID))
	utils.Success(w, http.StatusCreated, utils.Body{"theater": theater})
}

type patchRequest struct {
	Title           *string `json:"title"`
	StreamURL       *string `json:"stream_url"`
	TicketPriceUSDC *price  `json:"ticket_price_usdc"`
	Description     *string `json:"description"`
	IsActive        *bool   `json:"is_active"`
}

func (p patchRequest) patch() models.TheaterPatch {
	out := models.TheaterPatch{
		Title:       p.Title,
		StreamURL:   p.StreamURL,
		Description: p.Description,
		IsActive:    p.IsActive,
	}
	if p.TicketPriceUSDC != nil {
		f := float64(*p.TicketPriceUSDC)
		out.TicketPriceUSDC = &f
	}
	return out
}

func (h *Handler) UpdateTheater(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Failure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	patch := req.patch()

	if _, err := h.Store.Get(r.Context(), id); err != nil {
		h.storeError(w, err, "Failed to update theater")
		return
	}
	if err := theaterdb.ValidatePatch(patch); err != nil {
		utils.Failure(w, http.StatusBadRequest, validationMessage(err), nil)
		return
	}

	updated, err := h.Store.Update(r.Context(), id, patch)
	if err != nil {
		h.storeError(w, err, "Failed to update theater")
		return
	}
	h.Logger.Info("ADMIN", fmt.Sprintf("Updated theater: %s", id))
	utils.Success(w, http.StatusOK, utils.Body{"theater": updated})
}

// DeleteTheater takes the theater off the catalog; issued tickets keep their reference.
func (h *Handler) DeleteTheater(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.Deactivate(r.Context(), id); err != nil {
		h.storeError(w, err, "Failed to remove theater")
		return
	}
	h.Logger.Info("ADMIN", fmt.Sprintf("Removed theater: %s", id))
	utils.Success(w, http.StatusOK, utils.Body{"message": fmt.Sprintf("Theater %q removed", id)})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, theaterdb.ErrMissingFields):
		return "Missing required fields: id, title, stream_url, ticket_price_usdc"
	case errors.Is(err, theaterdb.ErrNotYouTube):
		return "stream_url must be a YouTube URL"
	case errors.Is(err, theaterdb.ErrInvalidPrice):
		return "ticket_price_usdc must be at least " + strconv.FormatFloat(theaterdb.MinTicketPriceUSDC, 'f', -1, 64)
	case errors.Is(err, theaterdb.ErrNothingToPatch):
		return "No fields to update"
	}
	return "Invalid theater"
}

func (h *Handler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, theaterdb.ErrNotFound) {
		utils.Failure(w, http.StatusNotFound, "Theater not found", nil)
		return
	}
	h.Logger.Error("ADMIN", fmt.Sprintf("%s: %v", msg, err))
	utils.Failure(w, http.StatusInternalServerError, msg, nil)
}
