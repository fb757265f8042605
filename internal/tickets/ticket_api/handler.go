package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clawnema/internal/logger"
	"clawnema/internal/tickets/qr"
	tickets "clawnema/internal/tickets/service"
	"clawnema/internal/utils"
)

type TicketService interface {
	Purchase(ctx context.Context, agentID, claimedRef, theaterID string) (*tickets.Purchase, error)
	Session(ctx context.Context, token string) (*tickets.SessionInfo, error)
}

type Handler struct {
	TicketService TicketService
	Logger        *logger.Logger
	PublicURL     string
}

func NewHandler(svc TicketService, l *logger.Logger, publicURL string) *Handler {
	return &Handler{TicketService: svc, Logger: l, PublicURL: publicURL}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/buy-ticket", h.BuyTicket)
	r.Get("/session/{token}", h.GetSession)
	r.Get("/session/{token}/qr", h.GetSessionQR)
}

type buyTicketRequest struct {
	AgentID   string `json:"agent_id"`
	TxHash    string `json:"tx_hash"`
	TheaterID string `json:"theater_id"`
}

// BuyTicket is the single place where purchase errors become HTTP statuses.
func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	var req buyTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Failure(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	purchase, err := h.TicketService.Purchase(r.Context(), req.AgentID, req.TxHash, req.TheaterID)
	if err != nil {
		var pe *tickets.PurchaseError
		if errors.As(err, &pe) {
			h.Logger.Warn("TICKET", fmt.Sprintf("Purchase rejected for agent %q: %s (%s)", req.AgentID, pe.Kind, pe.Error()))
			utils.Failure(w, pe.Status(), pe.Error(), pe.Details())
			return
		}
		h.Logger.Error("TICKET", fmt.Sprintf("Purchase failed: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to process ticket purchase", nil)
		return
	}

	utils.Success(w, http.StatusOK, utils.Body{
		"session_token":       purchase.SessionToken,
		"expires_at":          purchase.ExpiresAt,
		"theater":             purchase.Theater,
		"tx_hash":             purchase.TxHash,
		"verification_method": purchase.Method,
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.TicketService.Session(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, tickets.ErrSessionNotFound) {
		utils.Failure(w, http.StatusNotFound, "Session not found or expired", nil)
		return
	}
	if err != nil {
		h.Logger.Error("TICKET", fmt.Sprintf("Session lookup failed: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch session details", nil)
		return
	}
	utils.Success(w, http.StatusOK, utils.Body{"session": info})
}

// GetSessionQR returns a PNG ticket stub that links back to the session.
func (h *Handler) GetSessionQR(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.TicketService.Session(r.Context(), token); err != nil {
		if errors.Is(err, tickets.ErrSessionNotFound) {
			utils.Failure(w, http.StatusNotFound, "Session not found or expired", nil)
			return
		}
		h.Logger.Error("TICKET", fmt.Sprintf("Session lookup failed: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to fetch session details", nil)
		return
	}

	png, err := qr.EncodeSession(h.PublicURL, token, qr.DefaultSize)
	if err != nil {
		h.Logger.Error("TICKET", fmt.Sprintf("QR generation failed: %v", err))
		utils.Failure(w, http.StatusInternalServerError, "Failed to generate ticket QR code", nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
