package domain

import (
	"fmt"
	"strings"

	"github.com/psj098/capmbot/pkg/quant"
)

// Security describes one tradeable instrument of the marketplace.
// Payoffs holds the instrument's payout in cents for each future
// world state; states are equally likely.
type Security struct {
	ID       int           `json:"id"`
	Item     string        `json:"item"`
	Payoffs  []quant.Cents `json:"payoffs"`
	MinPrice quant.Cents   `json:"min_price"`
	MaxPrice quant.Cents   `json:"max_price"`
	Tick     quant.Cents   `json:"tick"`
}

// ParsePayoffs parses a marketplace description string of the form
// "100,200,300,400" (whole cents per state) into a payoff vector.
func ParsePayoffs(description string) ([]quant.Cents, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("empty payoff description")
	}

	parts := strings.Split(description, ",")
	payoffs := make([]quant.Cents, 0, len(parts))
	for _, p := range parts {
		c, err := quant.ParseCents(p)
		if err != nil {
			return nil, fmt.Errorf("payoff description %q: %w", description, err)
		}
		payoffs = append(payoffs, c)
	}
	return payoffs, nil
}
