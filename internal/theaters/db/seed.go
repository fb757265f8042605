package db

import (
	"context"
	"errors"
	"fmt"

	"clawnema/internal/logger"
	"clawnema/internal/models"
)

var DefaultTheaters = []models.Theater{
	{
		ID:              "nature-live-1",
		Title:           "Planet Earth: Live Cam",
		StreamURL:       "https://www.youtube.com/watch?v=-xKOLW6LkRw",
		TicketPriceUSDC: 0.50,
		Description:     "Experience the hustle and bustle of NYC's Times Square in real-time.",
	},
	{
		ID:              "aquarium-live-1",
		Title:           "Monterey Bay Aquarium: Live",
		StreamURL:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		TicketPriceUSDC: 1.00,
		Description:     "Dive into the underwater world of marine life.",
	},
	{
		ID:              "space-live-1",
		Title:           "NASA Live: Earth from Space",
		StreamURL:       "https://www.youtube.com/watch?v=xRPjKQtMKTg",
		TicketPriceUSDC: 2.00,
		Description:     "Watch our beautiful planet float through the cosmos from the ISS.",
	},
	{
		ID:              "jazz-live-1",
		Title:           "Jazz Lounge: Live Sessions",
		StreamURL:       "https://www.youtube.com/watch?v=neV3EPgvZ3g",
		TicketPriceUSDC: 1.50,
		Description:     "Smooth jazz performances live from the heart of New Orleans.",
	},
	{
		ID:              "northern-lights-1",
		Title:           "Aurora Borealis Live",
		StreamURL:       "https://www.youtube.com/watch?v=44Xz44eN5OI",
		TicketPriceUSDC: 3.00,
		Description:     "Witness the magical dance of the Northern Lights in real-time.",
	},
}

// Seed inserts any default theater whose id is not stored yet. Existing rows,
// including ones an admin edited or deactivated, are left alone.
func (d *DB) Seed(ctx context.Context, defaults []models.Theater, l *logger.Logger) (int, error) {
	seeded := 0
	for _, t := range defaults {
		theater := t
		theater.IsActive = true
		err := d.Create(ctx, &theater)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return seeded, fmt.Errorf("seed theater %s: %w", t.ID, err)
		}
		seeded++
		l.LogDatabase("SEED", "theaters", fmt.Sprintf("Seeded theater: %s", theater.Title))
	}
	return seeded, nil
}
