package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"casinolab/internal/ledger"
	"casinolab/internal/metrics"
)

const (
	BET_QUEUE_SIZE     = 1000
	CASHOUT_QUEUE_SIZE = 1000
	MIN_AUTO_CASHOUT   = 1.01
	LEDGER_TIMEOUT     = 2 * time.Second
)

type ManagerConfig struct {
	BettingTime    time.Duration
	Cooldown       time.Duration
	TickInterval   time.Duration
	HistorySize    int
	MinBet         float64
	MaxBet         float64
	RequestTimeout time.Duration
}

// Broadcaster fans a message out to every connection without blocking.
type Broadcaster interface {
	Broadcast(msg Outbound)
}

// RoundSource commits to rounds before they start and reveals them after.
type RoundSource interface {
	NextRound(roundID string) (RoundCommit, *SaltReveal, error)
	Reveal(c RoundCommit, crashedAt time.Time) RoundProof
}

type crashRound struct {
	commit        RoundCommit
	phase         Phase
	bettingEndsAt time.Time
	startedAt     time.Time
	crashedAt     time.Time
	nextRoundAt   time.Time
	wagers        map[string]*ActiveWager
	order         []string
}

func (r *crashRound) multiplier(now time.Time) float64 {
	return MultiplierAt(now.Sub(r.startedAt))
}

// Manager runs the crash game. Round state is owned by the game loop
// goroutine; everything else talks to it through betChannel and
// cashoutChannel and reads the published snapshot.
type Manager struct {
	cfg      ManagerConfig
	hub      Broadcaster
	ledger   ledger.Ledger
	rounds   RoundSource
	recorder *Recorder
	now      func() time.Time

	betChannel     chan BetRequest
	cashoutChannel chan CashoutRequest
	stopChan       chan struct{}
	done           chan struct{}
	stopOnce       sync.Once

	// loop goroutine only
	round   *crashRound
	history []HistoryEntry
	nonce   int

	stateMutex sync.RWMutex
	snapshot   Snapshot
}

func NewManager(cfg ManagerConfig, hub Broadcaster, l ledger.Ledger, rounds RoundSource, recorder *Recorder) *Manager {
	return &Manager{
		cfg:            cfg,
		hub:            hub,
		ledger:         l,
		rounds:         rounds,
		recorder:       recorder,
		now:            time.Now,
		betChannel:     make(chan BetRequest, BET_QUEUE_SIZE),
		cashoutChannel: make(chan CashoutRequest, CASHOUT_QUEUE_SIZE),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
		history:        []HistoryEntry{},
		snapshot:       Snapshot{Phase: PhaseWaiting, History: []HistoryEntry{}, ActiveBets: []ActiveWager{}},
	}
}

func (m *Manager) Start() {
	go m.gameLoop()
}

// Stop ends the loop, refunds wagers of an unfinished round and waits.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.done
}

// Snapshot returns the published round state with the multiplier computed
// for the current time.
func (m *Manager) Snapshot() Snapshot {
	m.stateMutex.RLock()
	s := m.snapshot
	m.stateMutex.RUnlock()

	now := m.now()
	s.ServerTime = now
	s.GrowthRate = GrowthRate
	switch s.Phase {
	case PhaseRunning:
		s.CurrentMultiplier = FloorCents(MultiplierAt(now.Sub(s.StartedAt)))
	case PhaseCrashed:
		s.CurrentMultiplier = s.CrashPoint
	default:
		s.CurrentMultiplier = MIN_MULTIPLIER
	}
	return s
}

func (m *Manager) History() []HistoryEntry {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.snapshot.History
}

func (m *Manager) PlaceBet(ctx context.Context, req BetRequest) (BetResponse, error) {
	respChan := make(chan BetResponse, 1)
	req.ResponseChan = respChan

	select {
	case m.betChannel <- req:
	case <-m.done:
		return BetResponse{Message: ErrGameStopped.Error()}, ErrGameStopped
	default:
		return BetResponse{Message: ErrQueueFull.Error()}, ErrQueueFull
	}

	// on timeout the bet may still be placed by the loop
	select {
	case resp := <-respChan:
		return resp, resp.err
	case <-ctx.Done():
		return BetResponse{Message: ErrTimeout.Error()}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-time.After(m.cfg.RequestTimeout):
		return BetResponse{Message: ErrTimeout.Error()}, ErrTimeout
	case <-m.done:
		return BetResponse{Message: ErrGameStopped.Error()}, ErrGameStopped
	}
}

func (m *Manager) Cashout(ctx context.Context, req CashoutRequest) (CashoutResponse, error) {
	respChan := make(chan CashoutResponse, 1)
	req.ResponseChan = respChan

	select {
	case m.cashoutChannel <- req:
	case <-m.done:
		return CashoutResponse{Message: ErrGameStopped.Error()}, ErrGameStopped
	default:
		return CashoutResponse{Message: ErrQueueFull.Error()}, ErrQueueFull
	}

	select {
	case resp := <-respChan:
		return resp, resp.err
	case <-ctx.Done():
		return CashoutResponse{Message: ErrTimeout.Error()}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-time.After(m.cfg.RequestTimeout):
		return CashoutResponse{Message: ErrTimeout.Error()}, ErrTimeout
	case <-m.done:
		return CashoutResponse{Message: ErrGameStopped.Error()}, ErrGameStopped
	}
}

func (m *Manager) gameLoop() {
	defer close(m.done)
	defer m.shutdown()

	for {
		select {
		case <-m.stopChan:
			log.Println("[GAME] Game loop stopped")
			return
		default:
		}
		if err := m.runRound(); err != nil {
			log.Printf("[GAME] Round aborted: %v", err)
			if !m.wait(m.cfg.Cooldown) {
				return
			}
		}
	}
}

// runRound drives one round through all three phases. It returns early
// without error when the manager is stopped.
func (m *Manager) runRound() error {
	if err := m.openRound(m.now()); err != nil {
		return err
	}

	bettingTimer := time.NewTimer(m.cfg.BettingTime)
	defer bettingTimer.Stop()
	for betting := true; betting; {
		select {
		case <-bettingTimer.C:
			betting = false
		case bet := <-m.betChannel:
			m.processBet(bet)
		case cashout := <-m.cashoutChannel:
			m.processCashout(cashout)
		case <-m.stopChan:
			return nil
		}
	}

	m.startRunning(m.now())

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for m.round.phase == PhaseRunning {
		if m.tick(m.now()) {
			break
		}
		select {
		case <-ticker.C:
		case bet := <-m.betChannel:
			m.processBet(bet)
		case cashout := <-m.cashoutChannel:
			m.processCashout(cashout)
		case <-m.stopChan:
			return nil
		}
	}

	cooldownTimer := time.NewTimer(m.cfg.Cooldown)
	defer cooldownTimer.Stop()
	for {
		select {
		case <-cooldownTimer.C:
			return nil
		case bet := <-m.betChannel:
			m.processBet(bet)
		case cashout := <-m.cashoutChannel:
			m.processCashout(cashout)
		case <-m.stopChan:
			return nil
		}
	}
}

// wait sleeps for d, rejecting requests meanwhile. It reports false when
// the manager was stopped.
func (m *Manager) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case bet := <-m.betChannel:
			m.processBet(bet)
		case cashout := <-m.cashoutChannel:
			m.processCashout(cashout)
		case <-m.stopChan:
			return false
		}
	}
}

func (m *Manager) openRound(now time.Time) error {
	m.nonce++
	roundID := fmt.Sprintf("R%d-%d", now.Unix(), m.nonce)

	commit, reveal, err := m.rounds.NextRound(roundID)
	if reveal != nil {
		m.recorder.RecordSaltReveal(*reveal)
		m.hub.Broadcast(SystemMessageMsg{
			Message: fmt.Sprintf("Server salt %s... retired after %d rounds and revealed", reveal.Commitment[:16], reveal.Rounds),
			SentAt:  now,
		})
	}
	if err != nil {
		m.round = nil
		return fmt.Errorf("open round %s: %w", roundID, err)
	}

	m.round = &crashRound{
		commit:        commit,
		phase:         PhaseWaiting,
		bettingEndsAt: now.Add(m.cfg.BettingTime),
		wagers:        make(map[string]*ActiveWager),
	}

	log.Printf("=== ROUND %s ===", roundID)
	log.Printf("[FAIR] Commitment: %s...", commit.Commitment[:16])
	log.Printf("[FAIR] Crash Point: %.2fx (HIDDEN)", commit.CrashPoint)

	m.publish()
	m.hub.Broadcast(GameStateMsg{Snapshot: m.Snapshot()})
	return nil
}

func (m *Manager) startRunning(now time.Time) {
	m.round.phase = PhaseRunning
	m.round.startedAt = now
	m.publish()
	m.hub.Broadcast(GameStartMsg{
		RoundID:    m.round.commit.RoundID,
		StartedAt:  now,
		ServerTime: now,
		GrowthRate: GrowthRate,
	})
	log.Printf("[GAME] Round %s running with %d bets", m.round.commit.RoundID, len(m.round.order))
}

// tick advances a running round. It reports true once the round crashed.
func (m *Manager) tick(now time.Time) bool {
	r := m.round
	if r == nil || r.phase != PhaseRunning {
		return r != nil && r.phase == PhaseCrashed
	}

	raw := r.multiplier(now)
	if raw >= r.commit.CrashPoint {
		m.crash(now)
		return true
	}

	m.processAutoCashouts(raw)
	m.hub.Broadcast(MultiplierUpdateMsg{
		RoundID:    r.commit.RoundID,
		Multiplier: FloorCents(raw),
		ElapsedMS:  now.Sub(r.startedAt).Milliseconds(),
	})
	return false
}

func (m *Manager) processAutoCashouts(raw float64) {
	for _, userID := range m.round.order {
		w := m.round.wagers[userID]
		if w.CashedOut || w.AutoCashout <= 0 || raw < w.AutoCashout {
			continue
		}
		if _, err := m.settle(w, w.AutoCashout, true); err != nil {
			log.Printf("[CASHOUT] Auto cashout for %s failed: %v", userID, err)
		}
	}
}

func (m *Manager) processBet(req BetRequest) {
	resp := m.handleBet(req)
	if req.ResponseChan != nil {
		req.ResponseChan <- resp
	}
}

func (m *Manager) handleBet(req BetRequest) (resp BetResponse) {
	fail := func(err error) BetResponse {
		metrics.BetsRejected.WithLabelValues(string(GameTypeCrash), Reason(err)).Inc()
		return BetResponse{Message: err.Error(), err: err}
	}

	r := m.round
	if r == nil || r.phase != PhaseWaiting {
		return fail(ErrBettingClosed)
	}
	if req.UserID == "" {
		return fail(ErrIdentityRequired)
	}
	if req.Amount < m.cfg.MinBet || req.Amount > m.cfg.MaxBet {
		return fail(fmt.Errorf("%w: bet must be between %.2f and %.2f", ErrInvalidStake, m.cfg.MinBet, m.cfg.MaxBet))
	}
	auto := RoundCents(req.AutoCashout)
	if req.AutoCashout < 0 || (req.AutoCashout > 0 && auto < MIN_AUTO_CASHOUT) {
		return fail(fmt.Errorf("%w: auto cashout must be at least %.2f", ErrInvalidParams, MIN_AUTO_CASHOUT))
	}
	if _, exists := r.wagers[req.UserID]; exists {
		return fail(ErrDuplicateBet)
	}

	amount := ledger.RoundCents(req.Amount)
	ctx, cancel := context.WithTimeout(context.Background(), LEDGER_TIMEOUT)
	defer cancel()
	balance, err := m.ledger.Debit(ctx, req.UserID, amount)
	if err != nil {
		resp = fail(err)
		resp.Balance = balance
		return resp
	}

	w := &ActiveWager{
		BetID:       uuid.NewString(),
		UserID:      req.UserID,
		Amount:      amount,
		AutoCashout: auto,
		PlacedAt:    m.now(),
	}
	r.wagers[req.UserID] = w
	r.order = append(r.order, req.UserID)

	m.publish()
	m.broadcastBets("bet", req.UserID)
	log.Printf("[BET] User %s placed %.2f (ID: %s)", req.UserID, amount, w.BetID)

	return BetResponse{
		Success:     true,
		Message:     "Bet placed successfully",
		BetID:       w.BetID,
		RoundID:     r.commit.RoundID,
		Amount:      amount,
		AutoCashout: auto,
		Balance:     balance,
	}
}

func (m *Manager) processCashout(req CashoutRequest) {
	resp := m.handleCashout(req)
	if req.ResponseChan != nil {
		req.ResponseChan <- resp
	}
}

func (m *Manager) handleCashout(req CashoutRequest) CashoutResponse {
	fail := func(err error) CashoutResponse {
		return CashoutResponse{Message: err.Error(), err: err}
	}

	r := m.round
	if r == nil || r.phase != PhaseRunning {
		return fail(ErrCashoutClosed)
	}
	w, ok := r.wagers[req.UserID]
	if !ok {
		return fail(ErrNoActiveWager)
	}
	if w.CashedOut {
		return fail(ErrAlreadyCashedOut)
	}
	if req.Multiplier < 0 || (req.Multiplier > 0 && req.Multiplier < MIN_MULTIPLIER) {
		return fail(fmt.Errorf("%w: multiplier must be at least %.2f", ErrInvalidParams, MIN_MULTIPLIER))
	}

	now := m.now()
	raw := r.multiplier(now)
	if raw >= r.commit.CrashPoint {
		m.crash(now)
		return fail(ErrCashoutClosed)
	}

	// the client's value can lower the payout, never raise it
	mult := FloorCents(raw)
	if req.Multiplier > 0 && req.Multiplier < mult {
		mult = FloorCents(req.Multiplier)
	}
	balance, err := m.settle(w, mult, false)
	if err != nil {
		return fail(err)
	}

	return CashoutResponse{
		Success:    true,
		Message:    fmt.Sprintf("Cashed out at %.2fx", mult),
		BetID:      w.BetID,
		RoundID:    r.commit.RoundID,
		Multiplier: mult,
		Payout:     w.Payout,
		Balance:    balance,
	}
}

// settle credits a wager at mult and marks it cashed out, returning the
// balance after the credit. A failed credit leaves the wager open.
func (m *Manager) settle(w *ActiveWager, mult float64, auto bool) (float64, error) {
	payout := RoundCents(w.Amount * mult)

	ctx, cancel := context.WithTimeout(context.Background(), LEDGER_TIMEOUT)
	defer cancel()
	balance, err := m.ledger.Credit(ctx, w.UserID, payout)
	if err != nil {
		return 0, fmt.Errorf("credit payout: %w", err)
	}

	w.CashedOut = true
	w.CashoutMultiplier = mult
	w.Payout = payout
	w.AutoCashedOut = auto

	m.publish()
	m.broadcastBets("cashout", w.UserID)
	log.Printf("[CASHOUT] User %s cashed out at %.2fx (Payout: %.2f, auto=%v)", w.UserID, mult, payout, auto)
	return balance, nil
}

func (m *Manager) crash(now time.Time) {
	r := m.round
	r.phase = PhaseCrashed
	r.crashedAt = now
	r.nextRoundAt = now.Add(m.cfg.Cooldown)
	cp := r.commit.CrashPoint

	// thresholds strictly below the crash point were reached between ticks
	for _, userID := range r.order {
		w := r.wagers[userID]
		if !w.CashedOut && w.AutoCashout > 0 && w.AutoCashout < cp {
			if _, err := m.settle(w, w.AutoCashout, true); err != nil {
				log.Printf("[CASHOUT] Auto cashout for %s failed at crash: %v", userID, err)
			}
		}
	}

	proof := m.rounds.Reveal(r.commit, now)

	m.history = append([]HistoryEntry{{RoundID: r.commit.RoundID, CrashPoint: cp, CrashedAt: now}}, m.history...)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[:m.cfg.HistorySize]
	}

	record := RoundRecord{
		RoundID:        r.commit.RoundID,
		Commitment:     r.commit.Commitment,
		Seed:           r.commit.Seed,
		SaltCommitment: r.commit.SaltCommitment,
		CrashPoint:     cp,
		StartedAt:      r.startedAt,
		CrashedAt:      now,
		Wagers:         len(r.order),
	}
	for _, userID := range r.order {
		w := r.wagers[userID]
		record.TotalStaked += w.Amount
		record.TotalPaid += w.Payout
		if !w.CashedOut {
			log.Printf("[LOSS] User %s lost %.2f", w.UserID, w.Amount)
		}
		m.recorder.RecordOutcome(wagerOutcome(w, r.commit, now))
		metrics.RecordBet(string(GameTypeCrash), w.Amount, w.Payout)
	}
	m.recorder.RecordRound(record)
	metrics.CrashRounds.Inc()
	metrics.CrashPoints.Observe(cp)

	m.publish()
	m.hub.Broadcast(GameCrashMsg{
		RoundID:        r.commit.RoundID,
		CrashPoint:     cp,
		Seed:           proof.Seed,
		Commitment:     proof.Commitment,
		SaltCommitment: proof.SaltCommitment,
		CrashedAt:      now,
		History:        m.historyCopy(),
	})
	m.hub.Broadcast(WaitingForNextMsg{
		NextRoundAt: r.nextRoundAt,
		CooldownMS:  m.cfg.Cooldown.Milliseconds(),
	})
	log.Printf("=== ROUND %s ENDED at %.2fx ===", r.commit.RoundID, cp)
}

func wagerOutcome(w *ActiveWager, c RoundCommit, now time.Time) OutcomeResult {
	return OutcomeResult{
		ID:         w.BetID,
		UserID:     w.UserID,
		Game:       GameTypeCrash,
		Stake:      w.Amount,
		Multiplier: w.CashoutMultiplier,
		Win:        w.CashedOut,
		Payout:     w.Payout,
		Crash: &CrashDetail{
			RoundID:     c.RoundID,
			BetID:       w.BetID,
			CrashPoint:  c.CrashPoint,
			AutoCashout: w.AutoCashout,
			Automatic:   w.AutoCashedOut,
		},
		CreatedAt: now,
	}
}

// shutdown voids a round that never crashed: open stakes go back to their
// owners. The active salt is retired so every finished round can be verified.
func (m *Manager) shutdown() {
	if r := m.round; r != nil && r.phase != PhaseCrashed {
		ctx, cancel := context.WithTimeout(context.Background(), LEDGER_TIMEOUT)
		for _, userID := range r.order {
			w := r.wagers[userID]
			if w.CashedOut {
				continue
			}
			if _, err := m.ledger.Credit(ctx, w.UserID, w.Amount); err != nil {
				log.Printf("[GAME] Refund of %.2f to %s failed: %v", w.Amount, w.UserID, err)
			}
		}
		cancel()
		log.Printf("[GAME] Round %s voided on shutdown", r.commit.RoundID)
	}
	if retirer, ok := m.rounds.(interface{ RetireSalt() (SaltReveal, bool) }); ok {
		if reveal, ok := retirer.RetireSalt(); ok {
			m.recorder.RecordSaltReveal(reveal)
		}
	}
}

func (m *Manager) broadcastBets(event, userID string) {
	m.hub.Broadcast(ActiveBetsUpdateMsg{
		RoundID: m.round.commit.RoundID,
		Event:   event,
		UserID:  userID,
		Bets:    m.wagersCopy(),
	})
}

func (m *Manager) wagersCopy() []ActiveWager {
	out := make([]ActiveWager, 0, len(m.round.order))
	for _, userID := range m.round.order {
		out = append(out, *m.round.wagers[userID])
	}
	return out
}

func (m *Manager) historyCopy() []HistoryEntry {
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// publish replaces the snapshot read by other goroutines. The hidden crash
// point and seed are only included once the round has crashed.
func (m *Manager) publish() {
	r := m.round
	s := Snapshot{
		RoundID:        r.commit.RoundID,
		Phase:          r.phase,
		Commitment:     r.commit.Commitment,
		SaltCommitment: r.commit.SaltCommitment,
		BettingEndsAt:  r.bettingEndsAt,
		StartedAt:      r.startedAt,
		History:        m.historyCopy(),
		ActiveBets:     m.wagersCopy(),
	}
	if r.phase == PhaseCrashed {
		s.CrashedAt = r.crashedAt
		s.NextRoundAt = r.nextRoundAt
		s.CrashPoint = r.commit.CrashPoint
		s.Seed = r.commit.Seed
	}

	m.stateMutex.Lock()
	m.snapshot = s
	m.stateMutex.Unlock()
}
