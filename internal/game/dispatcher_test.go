package game

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"casinolab/internal/ledger"
)

type stubCrash struct {
	bets     []BetRequest
	cashouts []CashoutRequest
	betErr   error
}

func (s *stubCrash) PlaceBet(_ context.Context, req BetRequest) (BetResponse, error) {
	s.bets = append(s.bets, req)
	if s.betErr != nil {
		return BetResponse{Message: s.betErr.Error()}, s.betErr
	}
	return BetResponse{Success: true, BetID: "b1", RoundID: "R1", Amount: req.Amount}, nil
}

func (s *stubCrash) Cashout(_ context.Context, req CashoutRequest) (CashoutResponse, error) {
	s.cashouts = append(s.cashouts, req)
	return CashoutResponse{Success: true, Multiplier: 1.5, Payout: 15}, nil
}

func (s *stubCrash) Snapshot() Snapshot {
	return Snapshot{RoundID: "R1", Phase: PhaseWaiting, History: []HistoryEntry{}, ActiveBets: []ActiveWager{}}
}

type dispatchFixture struct {
	hub   *Hub
	crash *stubCrash
	chat  *MemoryChat
	d     *Dispatcher
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		hub:   startHub(t, "general", "dice"),
		crash: &stubCrash{},
		chat:  NewMemoryChat(),
	}
	casino := NewDefaultCasino(ledger.NewMemory(100), &scriptedSource{ints: []int{51}}, nil, 1, 1000)
	f.d = NewDispatcher(f.hub, f.crash, casino, f.chat)
	return f
}

func (f *dispatchFixture) connect(t *testing.T, userID string, admin bool) (*Client, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c, err := f.hub.Register(tr, userID, admin)
	if err != nil {
		t.Fatal(err)
	}
	return c, tr
}

func send(f *dispatchFixture, c *Client, raw string) {
	f.d.Handle(context.Background(), c, []byte(raw))
}

func errorReason(t *testing.T, tr *fakeTransport) string {
	t.Helper()
	var e ErrorMsg
	if err := json.Unmarshal(tr.next(t, "error"), &e); err != nil {
		t.Fatal(err)
	}
	return e.Reason
}

func TestDispatcher_Welcome(t *testing.T) {
	f := newDispatchFixture(t)
	c, tr := f.connect(t, "alice", false)

	if err := f.d.Welcome(c); err != nil {
		t.Fatalf("Welcome() error = %v", err)
	}

	var s Snapshot
	if err := json.Unmarshal(tr.next(t, "gameState"), &s); err != nil {
		t.Fatal(err)
	}
	if s.RoundID != "R1" || s.Phase != PhaseWaiting {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestDispatcher_WelcomeAfterDisconnect(t *testing.T) {
	f := newDispatchFixture(t)
	c, _ := f.connect(t, "alice", false)
	f.hub.Unregister(c)

	if err := f.d.Welcome(c); !errors.Is(err, ErrClientGone) {
		t.Errorf("Welcome() error = %v, want ErrClientGone", err)
	}
}

func TestDispatcher_ChatFlow(t *testing.T) {
	f := newDispatchFixture(t)
	alice, aliceTr := f.connect(t, "alice", false)
	bob, bobTr := f.connect(t, "bob", false)
	admin, adminTr := f.connect(t, "root", true)

	send(f, alice, `{"type":"chatMessage","data":{"message":"too early"}}`)
	if got := errorReason(t, aliceTr); got != "not_in_room" {
		t.Errorf("chat before join reason = %s", got)
	}

	send(f, alice, `{"type":"joinRoom","data":{"room":"general"}}`)
	aliceTr.next(t, "roomJoined")
	send(f, bob, `{"type":"joinRoom","data":{"room":"general"}}`)
	bobTr.next(t, "roomJoined")
	send(f, admin, `{"type":"joinRoom","data":{"room":"general"}}`)
	adminTr.next(t, "roomJoined")

	send(f, alice, `{"type":"chatMessage","data":{"message":"  hello  "}}`)
	var posted ChatMessage
	if err := json.Unmarshal(bobTr.next(t, "newChatMessage"), &posted); err != nil {
		t.Fatal(err)
	}
	if posted.Body != "hello" || posted.UserID != "alice" || posted.Room != "general" {
		t.Errorf("posted = %+v", posted)
	}

	send(f, bob, `{"type":"moderateMessage","data":{"message_id":"`+posted.ID+`","action":"delete"}}`)
	if got := errorReason(t, bobTr); got != "not_authorized" {
		t.Errorf("non-admin moderation reason = %s", got)
	}

	send(f, admin, `{"type":"moderateMessage","data":{"message_id":"`+posted.ID+`","action":"delete"}}`)
	var mod MessageModeratedMsg
	if err := json.Unmarshal(aliceTr.next(t, "messageModerated"), &mod); err != nil {
		t.Fatal(err)
	}
	if mod.MessageID != posted.ID || mod.Action != ModerationDelete || mod.ModeratedBy != "root" {
		t.Errorf("moderation = %+v", mod)
	}

	history, _ := f.chat.RecentChatMessages(context.Background(), "general", 10)
	if len(history) != 0 {
		t.Errorf("deleted message still in history: %+v", history)
	}
}

func TestDispatcher_JoinSendsHistory(t *testing.T) {
	f := newDispatchFixture(t)
	_ = f.chat.SaveChatMessage(context.Background(), ChatMessage{ID: "m1", Room: "dice", UserID: "x", Body: "gl", CreatedAt: time.Now()})

	c, tr := f.connect(t, "", false)
	send(f, c, `{"type":"joinRoom","data":{"room":"dice"}}`)

	var joined RoomJoinedMsg
	if err := json.Unmarshal(tr.next(t, "roomJoined"), &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Room != "dice" || len(joined.Messages) != 1 || joined.Messages[0].ID != "m1" {
		t.Errorf("joined = %+v", joined)
	}

	send(f, c, `{"type":"joinRoom","data":{"room":"vip"}}`)
	if got := errorReason(t, tr); got != "unknown_room" {
		t.Errorf("unknown room reason = %s", got)
	}
}

func TestDispatcher_CrashActions(t *testing.T) {
	f := newDispatchFixture(t)
	c, tr := f.connect(t, "alice", false)

	send(f, c, `{"type":"placeBet","data":{"amount":10,"auto_cashout":2.5}}`)
	tr.next(t, "betResult")
	if len(f.crash.bets) != 1 || f.crash.bets[0].UserID != "alice" || f.crash.bets[0].AutoCashout != 2.5 {
		t.Errorf("bets = %+v", f.crash.bets)
	}

	send(f, c, `{"type":"cashout","data":{"multiplier":1.5}}`)
	var res CashoutResponse
	if err := json.Unmarshal(tr.next(t, "cashoutResult"), &res); err != nil {
		t.Fatal(err)
	}
	if res.Payout != 15 || f.crash.cashouts[0].Multiplier != 1.5 {
		t.Errorf("cashout = %+v", res)
	}

	f.crash.betErr = ErrBettingClosed
	send(f, c, `{"type":"placeBet","data":{"amount":10}}`)
	if got := errorReason(t, tr); got != "betting_closed" {
		t.Errorf("reason = %s", got)
	}

	anon, anonTr := f.connect(t, "", false)
	send(f, anon, `{"type":"placeBet","data":{"amount":10}}`)
	if got := errorReason(t, anonTr); got != "identity_required" {
		t.Errorf("anonymous bet reason = %s", got)
	}
}

func TestDispatcher_SubmitBetAndPing(t *testing.T) {
	f := newDispatchFixture(t)
	c, tr := f.connect(t, "alice", false)

	send(f, c, `{"type":"submitBet","data":{"game":"dice","amount":10,"params":{"bet_type":"over","target":50}}}`)
	var res SubmitBetResponse
	if err := json.Unmarshal(tr.next(t, "gameResult"), &res); err != nil {
		t.Fatal(err)
	}
	if res.Payout != 19.7 || res.Balance != 109.7 {
		t.Errorf("result = %+v", res)
	}

	send(f, c, `{"type":"ping"}`)
	tr.next(t, "pong")
}

func TestDispatcher_BadMessages(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"not json", `{nope`, "invalid_parameters"},
		{"unknown type", `{"type":"teleport"}`, "invalid_parameters"},
		{"empty chat", `{"type":"chatMessage","data":{"message":""}}`, "invalid_parameters"},
		{"bad amount", `{"type":"placeBet","data":{"amount":-3}}`, "invalid_parameters"},
		{"wrong field type", `{"type":"placeBet","data":{"amount":"ten"}}`, "invalid_parameters"},
		{"chat too long", `{"type":"chatMessage","data":{"message":"` + strings.Repeat("a", 501) + `"}}`, "invalid_parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t)
			c, tr := f.connect(t, "alice", false)
			send(f, c, tt.raw)
			if got := errorReason(t, tr); got != tt.reason {
				t.Errorf("reason = %s, want %s", got, tt.reason)
			}
			if len(f.crash.bets) != 0 {
				t.Error("invalid message reached the crash game")
			}
		})
	}
}
