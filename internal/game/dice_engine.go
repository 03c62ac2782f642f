package game

import (
	"fmt"

	"casinolab/internal/rng"
)

const (
	DICE_MIN_VALUE  = 1
	DICE_MAX_VALUE  = 100
	DICE_HOUSE_EDGE = 0.015
	// exact pays the fair 100x less the edge
	DICE_EXACT_MULTIPLIER = 98.5
)

type DiceDetail struct {
	Roll    int    `json:"roll"`
	Target  int    `json:"target"`
	BetType string `json:"bet_type"`
}

type DiceEngine struct{}

func NewDiceEngine() *DiceEngine {
	return &DiceEngine{}
}

func (d *DiceEngine) GetType() GameType {
	return GameTypeDice
}

// Validate rejects targets that can never win: over 100 and under 1.
func (d *DiceEngine) Validate(p GameParams) error {
	lo, hi := DICE_MIN_VALUE, DICE_MAX_VALUE
	switch p.BetType {
	case "over":
		hi = DICE_MAX_VALUE - 1
	case "under":
		lo = DICE_MIN_VALUE + 1
	case "exact":
	default:
		return fmt.Errorf("%w: dice bet must be over, under or exact", ErrInvalidParams)
	}
	if p.Target < lo || p.Target > hi {
		return fmt.Errorf("%w: %s target must be %d-%d", ErrInvalidParams, p.BetType, lo, hi)
	}
	return nil
}

// DiceMultiplier is 100/P(win) less the edge, rounded to cents.
func DiceMultiplier(betType string, target int) float64 {
	switch betType {
	case "over":
		return RoundCents(100 / float64(DICE_MAX_VALUE-target) * (1 - DICE_HOUSE_EDGE))
	case "under":
		return RoundCents(100 / float64(target) * (1 - DICE_HOUSE_EDGE))
	case "exact":
		return DICE_EXACT_MULTIPLIER
	}
	return 0
}

func diceWins(betType string, target, roll int) bool {
	switch betType {
	case "over":
		return roll > target
	case "under":
		return roll < target
	case "exact":
		return roll == target
	}
	return false
}

// ResolveDice returns the multiplier paid for a roll, zero on a loss.
func ResolveDice(roll int, p GameParams) float64 {
	if !diceWins(p.BetType, p.Target, roll) {
		return 0
	}
	return DiceMultiplier(p.BetType, p.Target)
}

func (d *DiceEngine) Play(src rng.Source, stake float64, p GameParams) (OutcomeResult, error) {
	if err := d.Validate(p); err != nil {
		return OutcomeResult{}, err
	}
	roll, err := src.Int(DICE_MIN_VALUE, DICE_MAX_VALUE+1)
	if err != nil {
		return OutcomeResult{}, err
	}

	mult := ResolveDice(roll, p)
	return OutcomeResult{
		Game:       GameTypeDice,
		Stake:      stake,
		Draws:      []float64{float64(roll)},
		Multiplier: mult,
		Win:        mult > 0,
		Payout:     RoundCents(stake * mult),
		Dice:       &DiceDetail{Roll: roll, Target: p.Target, BetType: p.BetType},
	}, nil
}
