package analytics_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clawnema/internal/analytics"
	"clawnema/internal/logger"
	"clawnema/internal/utils"
)

type StatsService interface {
	Public(ctx context.Context) (*analytics.PublicStats, error)
	Admin(ctx context.Context) (*analytics.AdminStats, error)
	Theaters(ctx context.Context) ([]analytics.TheaterActivity, error)
}

type Handler struct {
	Service StatsService
	Logger  *logger.Logger
}

func NewHandler(service StatsService, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/stats", h.GetPublicStats)
}

// AdminRoutes expects to be mounted behind the admin key middleware.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/stats", h.GetAdminStats)
	r.Get("/theaters", h.ListTheaters)
}

func (h *Handler) GetPublicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Public(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Error fetching public stats: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch stats", nil)
		return
	}
	utils.Success(w, http.StatusOK, utils.Body{"stats": stats})
}

func (h *Handler) GetAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Admin(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Error fetching admin stats: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch stats", nil)
		return
	}
	utils.Success(w, http.StatusOK, utils.Body{"stats": stats})
}

func (h *Handler) ListTheaters(w http.ResponseWriter, r *http.Request) {
	theaters, err := h.Service.Theaters(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Error listing theaters: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to list theaters", nil)
		return
	}
	utils.Success(w, http.StatusOK, utils.Body{"theaters": theaters})
}
