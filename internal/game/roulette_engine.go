package game

import (
	"fmt"

	"casinolab/internal/rng"
)

const (
	ROULETTE_POCKETS = 37

	ROULETTE_NUMBER_PAYOUT = 36.0
	ROULETTE_EVEN_MONEY    = 2.0
)

const (
	ColorGreen = "green"
	ColorRed   = "red"
	ColorBlack = "black"
)

type RouletteDetail struct {
	Number  int    `json:"number"`
	Color   string `json:"color"`
	BetType string `json:"bet_type"`
	Pick    string `json:"pick,omitempty"`
}

type RouletteEngine struct{}

func NewRouletteEngine() *RouletteEngine {
	return &RouletteEngine{}
}

func (r *RouletteEngine) GetType() GameType {
	return GameTypeRoulette
}

// PocketColor follows the table rule: zero is green, even black, odd red.
func PocketColor(n int) string {
	switch {
	case n == 0:
		return ColorGreen
	case n%2 == 0:
		return ColorBlack
	default:
		return ColorRed
	}
}

func (r *RouletteEngine) Validate(p GameParams) error {
	switch p.BetType {
	case "number":
		if p.Number == nil || *p.Number < 0 || *p.Number >= ROULETTE_POCKETS {
			return fmt.Errorf("%w: number must be 0-36", ErrInvalidParams)
		}
	case "color":
		if p.Color != ColorRed && p.Color != ColorBlack {
			return fmt.Errorf("%w: color must be red or black", ErrInvalidParams)
		}
	case "even", "odd", "low", "high":
	default:
		return fmt.Errorf("%w: unknown roulette bet %q", ErrInvalidParams, p.BetType)
	}
	return nil
}

// ResolveRoulette returns the multiplier paid for a bet on the given pocket.
func ResolveRoulette(n int, p GameParams) float64 {
	switch p.BetType {
	case "number":
		if p.Number != nil && *p.Number == n {
			return ROULETTE_NUMBER_PAYOUT
		}
		return 0
	}

	if n == 0 {
		return 0
	}
	var hit bool
	switch p.BetType {
	case "color":
		hit = PocketColor(n) == p.Color
	case "even":
		hit = n%2 == 0
	case "odd":
		hit = n%2 == 1
	case "low":
		hit = n <= 18
	case "high":
		hit = n >= 19
	}
	if hit {
		return ROULETTE_EVEN_MONEY
	}
	return 0
}

func (r *RouletteEngine) Play(src rng.Source, stake float64, p GameParams) (OutcomeResult, error) {
	if err := r.Validate(p); err != nil {
		return OutcomeResult{}, err
	}
	n, err := src.Int(0, ROULETTE_POCKETS)
	if err != nil {
		return OutcomeResult{}, err
	}

	mult := ResolveRoulette(n, p)
	pick := p.Color
	if p.BetType == "number" {
		pick = fmt.Sprint(*p.Number)
	}
	return OutcomeResult{
		Game:       GameTypeRoulette,
		Stake:      stake,
		Draws:      []float64{float64(n)},
		Multiplier: mult,
		Win:        mult > 0,
		Payout:     RoundCents(stake * mult),
		Roulette:   &RouletteDetail{Number: n, Color: PocketColor(n), BetType: p.BetType, Pick: pick},
	}, nil
}
