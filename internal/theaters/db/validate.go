package db

import (
	"errors"
	"math"
	"strings"

	"clawnema/internal/models"
)

// MinTicketPriceUSDC is one USDC base unit. Anything cheaper rounds down to a
// zero expected amount, which any zero-value transfer would satisfy.
const MinTicketPriceUSDC = 0.000001

var (
	ErrMissingFields  = errors.New("missing required theater fields")
	ErrNotYouTube     = errors.New("stream url is not a youtube url")
	ErrInvalidPrice   = errors.New("ticket price below one usdc base unit")
	ErrNothingToPatch = errors.New("empty theater patch")
)

func IsYouTubeURL(s string) bool {
	return strings.Contains(s, "youtube.com/") || strings.Contains(s, "youtu.be/")
}

func validPrice(p float64) bool {
	return p >= MinTicketPriceUSDC && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// ValidateNew checks a theater an admin wants to add.
func ValidateNew(t *models.Theater) error {
	if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.StreamURL) == "" || t.TicketPriceUSDC == 0 {
		return ErrMissingFields
	}
	if !IsYouTubeURL(t.StreamURL) {
		return ErrNotYouTube
	}
	if !validPrice(t.TicketPriceUSDC) {
		return ErrInvalidPrice
	}
	return nil
}

func ValidatePatch(p models.TheaterPatch) error {
	if p.IsEmpty() {
		return ErrNothingToPatch
	}
	if p.StreamURL != nil && !IsYouTubeURL(*p.StreamURL) {
		return ErrNotYouTube
	}
	if p.TicketPriceUSDC != nil && !validPrice(*p.TicketPriceUSDC) {
		return ErrInvalidPrice
	}
	return nil
}
