package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrUnknownUser       = errors.New("user id is required")
)

// Ledger moves money in and out of a user's balance. Debit and Credit are
// atomic per user: a debit never takes a balance below zero.
type Ledger interface {
	Balance(ctx context.Context, userID string) (float64, error)
	Debit(ctx context.Context, userID string, amount float64) (float64, error)
	Credit(ctx context.Context, userID string, amount float64) (float64, error)
	SetBalance(ctx context.Context, userID string, balance float64) error
}

// RoundCents rounds a money amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkArgs(userID string, amount float64) error {
	if userID == "" {
		return ErrUnknownUser
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

// Memory is an in-process ledger. Unknown users start with the configured
// opening balance.
type Memory struct {
	mu       sync.Mutex
	balances map[string]float64
	opening  float64
}

func NewMemory(openingBalance float64) *Memory {
	return &Memory{
		balances: make(map[string]float64),
		opening:  openingBalance,
	}
}

func (m *Memory) balance(userID string) float64 {
	b, ok := m.balances[userID]
	if !ok {
		b = m.opening
		m.balances[userID] = b
	}
	return b
}

func (m *Memory) Balance(_ context.Context, userID string) (float64, error) {
	if userID == "" {
		return 0, ErrUnknownUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(userID), nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	if err := checkArgs(userID, amount); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balance(userID)
	if b < amount {
		return b, ErrInsufficientFunds
	}
	b = RoundCents(b - amount)
	m.balances[userID] = b
	return b, nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	if err := checkArgs(userID, amount); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := RoundCents(m.balance(userID) + amount)
	m.balances[userID] = b
	return b, nil
}

func (m *Memory) SetBalance(_ context.Context, userID string, balance float64) error {
	if userID == "" {
		return ErrUnknownUser
	}
	if balance < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = RoundCents(balance)
	return nil
}
