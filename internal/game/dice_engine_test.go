package game

import (
	"errors"
	"testing"

	"casinolab/internal/rng"
)

func TestDiceMultiplier(t *testing.T) {
	tests := []struct {
		betType string
		target  int
		want    float64
	}{
		{"over", 50, 1.97},
		{"under", 50, 1.97},
		{"over", 98, 49.25},
		{"under", 2, 49.25},
		{"under", 75, 1.31},
		{"exact", 7, 98.5},
	}

	for _, tt := range tests {
		t.Run(tt.betType, func(t *testing.T) {
			if got := DiceMultiplier(tt.betType, tt.target); got != tt.want {
				t.Errorf("DiceMultiplier(%s, %d) = %v, want %v", tt.betType, tt.target, got, tt.want)
			}
		})
	}
}

func TestDiceEngine_Validate(t *testing.T) {
	engine := NewDiceEngine()

	tests := []struct {
		name    string
		params  GameParams
		wantErr bool
	}{
		{"over 1", GameParams{BetType: "over", Target: 1}, false},
		{"over 99", GameParams{BetType: "over", Target: 99}, false},
		{"over 100 cannot win", GameParams{BetType: "over", Target: 100}, true},
		{"under 1 cannot win", GameParams{BetType: "under", Target: 1}, true},
		{"under 100", GameParams{BetType: "under", Target: 100}, false},
		{"exact 100", GameParams{BetType: "exact", Target: 100}, false},
		{"exact 0", GameParams{BetType: "exact", Target: 0}, true},
		{"unknown bet", GameParams{BetType: "between", Target: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Validate(tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error %v does not wrap ErrInvalidParams", err)
			}
		})
	}
}

func TestDiceEngine_Play(t *testing.T) {
	engine := NewDiceEngine()

	t.Run("over 50 rolling 51 wins 1.97x", func(t *testing.T) {
		src := &scriptedSource{ints: []int{51}}
		out, err := engine.Play(src, 10, GameParams{BetType: "over", Target: 50})
		if err != nil {
			t.Fatalf("Play() error = %v", err)
		}
		if !out.Win || out.Multiplier != 1.97 || out.Payout != 19.7 {
			t.Errorf("got win=%v mult=%v payout=%v", out.Win, out.Multiplier, out.Payout)
		}
		if out.Dice == nil || out.Dice.Roll != 51 {
			t.Errorf("detail = %+v", out.Dice)
		}
	})

	t.Run("over 50 rolling 50 loses", func(t *testing.T) {
		src := &scriptedSource{ints: []int{50}}
		out, err := engine.Play(src, 10, GameParams{BetType: "over", Target: 50})
		if err != nil {
			t.Fatalf("Play() error = %v", err)
		}
		if out.Win || out.Payout != 0 {
			t.Errorf("got win=%v payout=%v", out.Win, out.Payout)
		}
	})

	t.Run("exact hit", func(t *testing.T) {
		src := &scriptedSource{ints: []int{100}}
		out, err := engine.Play(src, 2, GameParams{BetType: "exact", Target: 100})
		if err != nil {
			t.Fatalf("Play() error = %v", err)
		}
		if out.Payout != 197 {
			t.Errorf("Payout = %v, want 197", out.Payout)
		}
	})

	t.Run("invalid params draw nothing", func(t *testing.T) {
		src := &scriptedSource{ints: []int{42}}
		if _, err := engine.Play(src, 1, GameParams{BetType: "over", Target: 100}); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("Play() error = %v, want ErrInvalidParams", err)
		}
		if len(src.ints) != 1 {
			t.Error("randomness was drawn for an invalid bet")
		}
	})

	t.Run("entropy failure", func(t *testing.T) {
		src := &scriptedSource{fail: true}
		if _, err := engine.Play(src, 1, GameParams{BetType: "under", Target: 50}); !errors.Is(err, rng.ErrEntropyUnavailable) {
			t.Errorf("Play() error = %v, want ErrEntropyUnavailable", err)
		}
	})

	t.Run("real source stays in range", func(t *testing.T) {
		src := rng.New()
		for i := 0; i < 500; i++ {
			out, err := engine.Play(src, 1, GameParams{BetType: "exact", Target: 50})
			if err != nil {
				t.Fatal(err)
			}
			if out.Dice.Roll < DICE_MIN_VALUE || out.Dice.Roll > DICE_MAX_VALUE {
				t.Fatalf("roll %d out of range", out.Dice.Roll)
			}
		}
	})
}
