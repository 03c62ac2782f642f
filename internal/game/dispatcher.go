package game

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrashService is the crash round as seen by connections and REST handlers.
type CrashService interface {
	PlaceBet(ctx context.Context, req BetRequest) (BetResponse, error)
	Cashout(ctx context.Context, req CashoutRequest) (CashoutResponse, error)
	Snapshot() Snapshot
}

type InstantService interface {
	SubmitBet(ctx context.Context, req SubmitBetRequest) (SubmitBetResponse, error)
}

// Dispatcher routes inbound socket messages. Rejections go back to the
// sender only.
type Dispatcher struct {
	hub    *Hub
	crash  CrashService
	casino InstantService
	chat   ChatStore
	now    func() time.Time
}

func NewDispatcher(hub *Hub, crash CrashService, casino InstantService, chat ChatStore) *Dispatcher {
	return &Dispatcher{hub: hub, crash: crash, casino: casino, chat: chat, now: time.Now}
}

// Welcome sends the current round so a new client can render immediately.
func (d *Dispatcher) Welcome(c *Client) error {
	return d.hub.SendTo(c, GameStateMsg{Snapshot: d.crash.Snapshot()})
}

func (d *Dispatcher) Handle(ctx context.Context, c *Client, raw []byte) {
	msg, err := DecodeInbound(raw)
	if err != nil {
		d.hub.SendTo(c, NewErrorMsg("", err))
		return
	}
	if err := d.dispatch(ctx, c, msg); err != nil {
		if !IsClientError(err) {
			log.Printf("[WS] %s from %s failed: %v", msg.Type(), c.ID, err)
		}
		d.hub.SendTo(c, NewErrorMsg(msg.Type(), err))
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Client, msg Inbound) error {
	switch m := msg.(type) {
	case JoinRoomMsg:
		return d.joinRoom(ctx, c, m)
	case ChatPostMsg:
		return d.postChat(ctx, c, m)
	case ModerateMessageMsg:
		return d.moderate(ctx, c, m)
	case PlaceBetMsg:
		if c.UserID == "" {
			return ErrIdentityRequired
		}
		resp, err := d.crash.PlaceBet(ctx, BetRequest{UserID: c.UserID, Amount: m.Amount, AutoCashout: m.AutoCashout})
		if err != nil {
			return err
		}
		d.hub.SendTo(c, BetResultMsg{BetResponse: resp})
	case CashoutMsg:
		if c.UserID == "" {
			return ErrIdentityRequired
		}
		resp, err := d.crash.Cashout(ctx, CashoutRequest{UserID: c.UserID, Multiplier: m.Multiplier})
		if err != nil {
			return err
		}
		d.hub.SendTo(c, CashoutResultMsg{CashoutResponse: resp})
	case SubmitBetMsg:
		resp, err := d.casino.SubmitBet(ctx, SubmitBetRequest{UserID: c.UserID, Game: m.Game, Amount: m.Amount, Params: m.Params})
		if err != nil {
			return err
		}
		d.hub.SendTo(c, GameResultMsg{SubmitBetResponse: resp})
	case PingMsg:
		d.hub.SendTo(c, PongMsg{ServerTime: d.now()})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type())
	}
	return nil
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Client, m JoinRoomMsg) error {
	if err := d.hub.JoinRoom(c, m.Room); err != nil {
		return err
	}
	history, err := d.chat.RecentChatMessages(ctx, m.Room, CHAT_HISTORY_LIMIT)
	if err != nil {
		log.Printf("[CHAT] Loading history for %s: %v", m.Room, err)
	}
	if history == nil {
		history = []ChatMessage{}
	}
	d.hub.SendTo(c, RoomJoinedMsg{Room: m.Room, Messages: history})
	if c.UserID != "" {
		d.hub.BroadcastToRoom(m.Room, SystemMessageMsg{
			Room:    m.Room,
			Message: fmt.Sprintf("%s joined the room", c.UserID),
			SentAt:  d.now(),
		})
	}
	return nil
}

func (d *Dispatcher) postChat(ctx context.Context, c *Client, m ChatPostMsg) error {
	if c.UserID == "" {
		return ErrIdentityRequired
	}
	room := d.hub.RoomOf(c)
	if room == "" {
		return ErrNotInRoom
	}
	body := strings.TrimSpace(m.Message)
	if body == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidParams)
	}

	chat := ChatMessage{
		ID:        uuid.NewString(),
		Room:      room,
		UserID:    c.UserID,
		Body:      body,
		CreatedAt: d.now(),
	}
	if err := d.chat.SaveChatMessage(ctx, chat); err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}
	d.hub.BroadcastToRoom(room, NewChatMessageMsg{ChatMessage: chat})
	return nil
}

func (d *Dispatcher) moderate(ctx context.Context, c *Client, m ModerateMessageMsg) error {
	if !c.Admin {
		return ErrNotAuthorized
	}
	moderated, err := d.chat.ModerateChatMessage(ctx, m.MessageID, m.Action, c.UserID)
	if err != nil {
		return err
	}
	log.Printf("[CHAT] %s applied %s to message %s in %s", c.UserID, m.Action, m.MessageID, moderated.Room)
	d.hub.BroadcastToRoom(moderated.Room, MessageModeratedMsg{
		MessageID:   moderated.ID,
		Room:        moderated.Room,
		Action:      m.Action,
		ModeratedBy: c.UserID,
	})
	return nil
}
