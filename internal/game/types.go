package game

import (
	"time"
)

type GameType string

const (
	GameTypeCrash    GameType = "crash"
	GameTypeSlots    GameType = "slots"
	GameTypeRoulette GameType = "roulette"
	GameTypeDice     GameType = "dice"
)

type Phase string

const (
	PhaseWaiting Phase = "WAITING"
	PhaseRunning Phase = "RUNNING"
	PhaseCrashed Phase = "CRASHED"
)

type BetRequest struct {
	UserID       string           `json:"user_id" validate:"required,max=64"`
	Amount       float64          `json:"amount" validate:"gt=0"`
	AutoCashout  float64          `json:"auto_cashout,omitempty" validate:"omitempty,gte=1.01"`
	ResponseChan chan BetResponse `json:"-"`
}

type BetResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BetID       string  `json:"bet_id,omitempty"`
	RoundID     string  `json:"round_id,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
	Balance     float64 `json:"balance,omitempty"`
	err         error
}

type CashoutRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	// Multiplier is what the client saw when it asked to cash out. Zero means
	// "whatever the server says now"; a non-zero value can only lower the payout.
	Multiplier   float64              `json:"multiplier,omitempty" validate:"omitempty,gte=1"`
	ResponseChan chan CashoutResponse `json:"-"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	BetID      string  `json:"bet_id,omitempty"`
	RoundID    string  `json:"round_id,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
	Balance    float64 `json:"balance,omitempty"`
	err        error
}

// ActiveWager is one bettor's stake in the live crash round.
type ActiveWager struct {
	BetID             string    `json:"bet_id"`
	UserID            string    `json:"user_id"`
	Amount            float64   `json:"amount"`
	AutoCashout       float64   `json:"auto_cashout,omitempty"`
	PlacedAt          time.Time `json:"placed_at"`
	CashedOut         bool      `json:"cashed_out"`
	CashoutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Payout            float64   `json:"payout,omitempty"`
	AutoCashedOut     bool      `json:"auto_cashed_out,omitempty"`
}

type HistoryEntry struct {
	RoundID    string    `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	CrashedAt  time.Time `json:"crashed_at"`
}

// Snapshot is the read-only view of the crash round handed to connections and
// REST callers. CurrentMultiplier is computed at read time.
type Snapshot struct {
	RoundID           string         `json:"round_id"`
	Phase             Phase          `json:"phase"`
	Commitment        string         `json:"commitment"`
	SaltCommitment    string         `json:"salt_commitment"`
	BettingEndsAt     time.Time      `json:"betting_ends_at"`
	StartedAt         time.Time      `json:"started_at,omitempty"`
	CrashedAt         time.Time      `json:"crashed_at,omitempty"`
	NextRoundAt       time.Time      `json:"next_round_at,omitempty"`
	ServerTime        time.Time      `json:"server_time"`
	GrowthRate        float64        `json:"growth_rate"`
	CurrentMultiplier float64        `json:"current_multiplier"`
	CrashPoint        float64        `json:"crash_point,omitempty"`
	Seed              string         `json:"seed,omitempty"`
	History           []HistoryEntry `json:"history"`
	ActiveBets        []ActiveWager  `json:"active_bets"`
}

// GameParams carries the game specific part of an instant bet.
type GameParams struct {
	// roulette: number|color|even|odd|low|high, dice: over|under|exact
	BetType string `json:"bet_type,omitempty"`
	Number  *int   `json:"number,omitempty"`
	Color   string `json:"color,omitempty"`
	Target  int    `json:"target,omitempty"`
}

type SubmitBetRequest struct {
	UserID string     `json:"user_id" validate:"required,max=64"`
	Game   GameType   `json:"game" validate:"required"`
	Amount float64    `json:"amount" validate:"gt=0"`
	Params GameParams `json:"params"`
}

type SubmitBetResponse struct {
	Success bool          `json:"success"`
	Outcome OutcomeResult `json:"outcome"`
	Payout  float64       `json:"payout"`
	Balance float64       `json:"balance"`
}

// OutcomeResult is produced once per settled bet and never modified.
type OutcomeResult struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Game       GameType        `json:"game"`
	Stake      float64         `json:"stake"`
	Draws      []float64       `json:"draws,omitempty"`
	Multiplier float64         `json:"multiplier"`
	Win        bool            `json:"win"`
	Payout     float64         `json:"payout"`
	Slots      *SlotsDetail    `json:"slots,omitempty"`
	Roulette   *RouletteDetail `json:"roulette,omitempty"`
	Dice       *DiceDetail     `json:"dice,omitempty"`
	Crash      *CrashDetail    `json:"crash,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CrashDetail struct {
	RoundID     string  `json:"round_id"`
	BetID       string  `json:"bet_id"`
	CrashPoint  float64 `json:"crash_point"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
	Automatic   bool    `json:"automatic,omitempty"`
}

type RoundRecord struct {
	RoundID        string    `json:"round_id"`
	Commitment     string    `json:"commitment"`
	Seed           string    `json:"seed"`
	SaltCommitment string    `json:"salt_commitment"`
	CrashPoint     float64   `json:"crash_point"`
	StartedAt      time.Time `json:"started_at"`
	CrashedAt      time.Time `json:"crashed_at"`
	Wagers         int       `json:"wagers"`
	TotalStaked    float64   `json:"total_staked"`
	TotalPaid      float64   `json:"total_paid"`
}

// SaltReveal is a retired server salt, published once no live round uses it.
type SaltReveal struct {
	Commitment  string    `json:"commitment"`
	Salt        string    `json:"salt"`
	ActivatedAt time.Time `json:"activated_at"`
	RetiredAt   time.Time `json:"retired_at"`
	Rounds      int       `json:"rounds"`
}

type ModerationAction string

const (
	ModerationDelete ModerationAction = "delete"
	ModerationFlag   ModerationAction = "flag"
)

type ChatMessage struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	UserID      string    `json:"user_id"`
	Body        string    `json:"message"`
	Flagged     bool      `json:"flagged,omitempty"`
	Deleted     bool      `json:"deleted,omitempty"`
	ModeratedBy string    `json:"moderated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
