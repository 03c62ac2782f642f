package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"casinolab/internal/ledger"
	"casinolab/internal/metrics"
	"casinolab/internal/rng"
)

// GameEngine resolves one instant game. Validate must be side effect free and
// is always called before any randomness is drawn.
type GameEngine interface {
	GetType() GameType
	Validate(params GameParams) error
	Play(src rng.Source, stake float64, params GameParams) (OutcomeResult, error)
}

// Casino routes instant bets to their engines and moves the money.
type Casino struct {
	engines  map[GameType]GameEngine
	ledger   ledger.Ledger
	src      rng.Source
	recorder *Recorder
	minBet   float64
	maxBet   float64
	now      func() time.Time
}

func NewCasino(l ledger.Ledger, src rng.Source, recorder *Recorder, minBet, maxBet float64) *Casino {
	return &Casino{
		engines:  make(map[GameType]GameEngine),
		ledger:   l,
		src:      src,
		recorder: recorder,
		minBet:   minBet,
		maxBet:   maxBet,
		now:      time.Now,
	}
}

// NewDefaultCasino registers slots, roulette and dice.
func NewDefaultCasino(l ledger.Ledger, src rng.Source, recorder *Recorder, minBet, maxBet float64) *Casino {
	c := NewCasino(l, src, recorder, minBet, maxBet)
	c.RegisterEngine(NewSlotsEngine())
	c.RegisterEngine(NewRouletteEngine())
	c.RegisterEngine(NewDiceEngine())
	return c
}

func (c *Casino) RegisterEngine(engine GameEngine) {
	c.engines[engine.GetType()] = engine
	log.Printf("[CASINO] Registered %s engine", engine.GetType())
}

func (c *Casino) GetEngine(gameType GameType) (GameEngine, bool) {
	engine, exists := c.engines[gameType]
	return engine, exists
}

// SubmitBet validates, debits the stake, plays and credits any payout. If the
// game cannot be played after the debit the stake is refunded.
func (c *Casino) SubmitBet(ctx context.Context, req SubmitBetRequest) (resp SubmitBetResponse, err error) {
	defer func() {
		if err != nil {
			metrics.BetsRejected.WithLabelValues(string(req.Game), Reason(err)).Inc()
		}
	}()

	if req.UserID == "" {
		return resp, ErrIdentityRequired
	}
	if err := ValidateStruct(req); err != nil {
		return resp, err
	}
	engine, ok := c.GetEngine(req.Game)
	if !ok {
		return resp, fmt.Errorf("%w: %q", ErrGameUnavailable, req.Game)
	}
	if req.Amount < c.minBet || req.Amount > c.maxBet {
		return resp, fmt.Errorf("%w: bet must be between %.2f and %.2f", ErrInvalidStake, c.minBet, c.maxBet)
	}
	if err := engine.Validate(req.Params); err != nil {
		return resp, err
	}

	stake := ledger.RoundCents(req.Amount)
	balance, err := c.ledger.Debit(ctx, req.UserID, stake)
	if err != nil {
		return resp, err
	}

	outcome, err := engine.Play(c.src, stake, req.Params)
	if err != nil {
		if _, rerr := c.ledger.Credit(ctx, req.UserID, stake); rerr != nil {
			log.Printf("[CASINO] Refund of %.2f to %s failed: %v", stake, req.UserID, rerr)
		}
		log.Printf("[CASINO] %s bet for %s aborted: %v", req.Game, req.UserID, err)
		return resp, err
	}

	outcome.ID = uuid.NewString()
	outcome.UserID = req.UserID
	outcome.CreatedAt = c.now()

	if outcome.Payout > 0 {
		balance, err = c.ledger.Credit(ctx, req.UserID, outcome.Payout)
		if err != nil {
			log.Printf("[CASINO] UNSETTLED %s for %s: payout %.2f not credited: %v", outcome.ID, req.UserID, outcome.Payout, err)
			return resp, fmt.Errorf("credit payout: %w", err)
		}
	}
	// only settled outcomes reach history
	c.recorder.RecordOutcome(outcome)

	metrics.RecordBet(string(req.Game), stake, outcome.Payout)
	log.Printf("[CASINO] %s %s staked %.2f, %.2fx, payout %.2f", req.UserID, req.Game, stake, outcome.Multiplier, outcome.Payout)

	return SubmitBetResponse{
		Success: true,
		Outcome: outcome,
		Payout:  outcome.Payout,
		Balance: balance,
	}, nil
}
