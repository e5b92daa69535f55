// Package credit tracks per-user credit balances charged by completed turns.
package credit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInsufficientCredit is returned when a balance cannot cover a charge.
var ErrInsufficientCredit = errors.New("credit: insufficient balance")

// ErrInvalidAmount is returned for non-positive charges or grants.
var ErrInvalidAmount = errors.New("credit: amount must be positive")

// Ledger is the credit store consumed by the orchestrator.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Deduct charges amount atomically. It fails with ErrInsufficientCredit
	// and leaves the balance unchanged when the balance is too low.
	Deduct(ctx context.Context, userID string, amount int) error
}

// Granter is implemented by ledgers that can add credit.
type Granter interface {
	Grant(ctx context.Context, userID string, amount int) error
}

// Entry is one ledger movement. Delta is negative for charges.
type Entry struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	Delta     int       `json:"delta" yaml:"delta"`
	Reason    string    `json:"reason" yaml:"reason"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

const (
	ReasonTurn  = "turn"
	ReasonGrant = "grant"
)

// MemoryLedger is an in-process Ledger. The zero value is ready to use.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	entries  []Entry
	now      func() time.Time
}

// NewMemoryLedger creates a ledger seeded with balances.
func NewMemoryLedger(seed map[string]int) *MemoryLedger {
	m := &MemoryLedger{}
	for u, b := range seed {
		m.setLocked(u, b)
	}
	return m
}

func (m *MemoryLedger) setLocked(userID string, balance int) {
	if m.balances == nil {
		m.balances = make(map[string]int)
	}
	m.balances[userID] = balance
}

func (m *MemoryLedger) stamp() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now().UTC()
}

func (m *MemoryLedger) Balance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MemoryLedger) Deduct(_ context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balances[userID]
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCredit, bal, amount)
	}
	m.setLocked(userID, bal-amount)
	m.entries = append(m.entries, Entry{UserID: userID, Delta: -amount, Reason: ReasonTurn, CreatedAt: m.stamp()})
	return nil
}

func (m *MemoryLedger) Grant(_ context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(userID, m.balances[userID]+amount)
	m.entries = append(m.entries, Entry{UserID: userID, Delta: amount, Reason: ReasonGrant, CreatedAt: m.stamp()})
	return nil
}

// Deductions returns how many charges were recorded for userID.
func (m *MemoryLedger) Deductions(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.Delta < 0 {
			n++
		}
	}
	return n
}

// History returns the newest entries for userID first, at most limit.
func (m *MemoryLedger) History(_ context.Context, userID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID != userID {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
