package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound is a server to client message. Type is the wire tag.
type Outbound interface {
	Type() string
}

// Inbound is a client to server message.
type Inbound interface {
	Type() string
}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Encode wraps msg as {"type": ..., "data": ...}.
func Encode(msg Outbound) ([]byte, error) {
	return json.Marshal(envelope{Type: msg.Type(), Data: msg})
}

type GameStateMsg struct {
	Snapshot
}

type GameStartMsg struct {
	RoundID    string    `json:"round_id"`
	StartedAt  time.Time `json:"started_at"`
	ServerTime time.Time `json:"server_time"`
	GrowthRate float64   `json:"growth_rate"`
}

type MultiplierUpdateMsg struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

type GameCrashMsg struct {
	RoundID        string         `json:"round_id"`
	CrashPoint     float64        `json:"crash_point"`
	Seed           string         `json:"seed"`
	Commitment     string         `json:"commitment"`
	SaltCommitment string         `json:"salt_commitment"`
	CrashedAt      time.Time      `json:"crashed_at"`
	History        []HistoryEntry `json:"history"`
}

type WaitingForNextMsg struct {
	NextRoundAt time.Time `json:"next_round_at"`
	CooldownMS  int64     `json:"cooldown_ms"`
}

type RoomJoinedMsg struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

type NewChatMessageMsg struct {
	ChatMessage
}

type SystemMessageMsg struct {
	Room    string    `json:"room,omitempty"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

type MessageModeratedMsg struct {
	MessageID   string           `json:"message_id"`
	Room        string           `json:"room"`
	Action      ModerationAction `json:"action"`
	ModeratedBy string           `json:"moderated_by"`
}

type ActiveBetsUpdateMsg struct {
	RoundID string        `json:"round_id"`
	Event   string        `json:"event"`
	UserID  string        `json:"user_id,omitempty"`
	Bets    []ActiveWager `json:"bets"`
}

type ErrorMsg struct {
	Message string            `json:"message"`
	Reason  string            `json:"reason"`
	Request string            `json:"request,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type BetResultMsg struct {
	BetResponse
}

type CashoutResultMsg struct {
	CashoutResponse
}

type GameResultMsg struct {
	SubmitBetResponse
}

type PongMsg struct {
	ServerTime time.Time `json:"server_time"`
}

func (GameStateMsg) Type() string        { return "gameState" }
func (GameStartMsg) Type() string        { return "gameStart" }
func (MultiplierUpdateMsg) Type() string { return "multiplierUpdate" }
func (GameCrashMsg) Type() string        { return "gameCrash" }
func (WaitingForNextMsg) Type() string   { return "waitingForNext" }
func (RoomJoinedMsg) Type() string       { return "roomJoined" }
func (NewChatMessageMsg) Type() string   { return "newChatMessage" }
func (SystemMessageMsg) Type() string    { return "systemMessage" }
func (MessageModeratedMsg) Type() string { return "messageModerated" }
func (ActiveBetsUpdateMsg) Type() string { return "activeBetsUpdate" }
func (ErrorMsg) Type() string            { return "error" }
func (BetResultMsg) Type() string        { return "betResult" }
func (CashoutResultMsg) Type() string    { return "cashoutResult" }
func (GameResultMsg) Type() string       { return "gameResult" }
func (PongMsg) Type() string             { return "pong" }

// NewErrorMsg builds the error message for a rejected request.
func NewErrorMsg(request string, err error) ErrorMsg {
	msg := ErrorMsg{Message: err.Error(), Reason: Reason(err), Request: request}
	if fields := FormatValidationError(err); fields != nil {
		if _, generic := fields["error"]; !generic {
			msg.Fields = fields
		}
	}
	return msg
}

type JoinRoomMsg struct {
	Room string `json:"room" validate:"required,max=32"`
}

type ChatPostMsg struct {
	Message string `json:"message" validate:"required,max=500"`
}

type ModerateMessageMsg struct {
	MessageID string           `json:"message_id" validate:"required"`
	Action    ModerationAction `json:"action" validate:"required,oneof=delete flag"`
}

type PlaceBetMsg struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	AutoCashout float64 `json:"auto_cashout,omitempty" validate:"omitempty,gte=1.01"`
}

type CashoutMsg struct {
	Multiplier float64 `json:"multiplier,omitempty" validate:"omitempty,gte=1"`
}

type SubmitBetMsg struct {
	Game   GameType   `json:"game" validate:"required"`
	Amount float64    `json:"amount" validate:"gt=0"`
	Params GameParams `json:"params"`
}

type PingMsg struct{}

func (JoinRoomMsg) Type() string        { return "joinRoom" }
func (ChatPostMsg) Type() string        { return "chatMessage" }
func (ModerateMessageMsg) Type() string { return "moderateMessage" }
func (PlaceBetMsg) Type() string        { return "placeBet" }
func (CashoutMsg) Type() string         { return "cashout" }
func (SubmitBetMsg) Type() string       { return "submitBet" }
func (PingMsg) Type() string            { return "ping" }

// DecodeInbound parses and validates a client message.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var (
		msg Inbound
		err error
	)
	switch env.Type {
	case "joinRoom":
		msg, err = decodeInto[JoinRoomMsg](env.Data)
	case "chatMessage":
		msg, err = decodeInto[ChatPostMsg](env.Data)
	case "moderateMessage":
		msg, err = decodeInto[ModerateMessageMsg](env.Data)
	case "placeBet":
		msg, err = decodeInto[PlaceBetMsg](env.Data)
	case "cashout":
		msg, err = decodeInto[CashoutMsg](env.Data)
	case "submitBet":
		msg, err = decodeInto[SubmitBetMsg](env.Data)
	case "ping":
		return PingMsg{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Type, err)
	}
	if err := ValidateStruct(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeInto[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
