package ledger

import (
	"context"
	"sync"

	"github.com/yunabot/dispatch-gateway/internal/admission"
)

// Memory is an in-process ledger. Unknown requesters start at the
// configured starting balance. It implements admission.Ledger.
type Memory struct {
	mutex           sync.Mutex
	balances        map[string]int64
	startingBalance int64
}

// NewMemory creates a ledger where new requesters begin with
// startingBalance.
func NewMemory(startingBalance int64) *Memory {
	return &Memory{
		balances:        make(map[string]int64),
		startingBalance: startingBalance,
	}
}

// Debit subtracts amount from the requester's balance, failing with
// admission.ErrInsufficientFunds when the balance cannot cover it.
// The check and the subtraction are one atomic step.
func (m *Memory) Debit(_ context.Context, requesterID string, amount int64) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	balance := m.balanceLocked(requesterID)
	if balance < amount {
		return balance, admission.ErrInsufficientFunds
	}

	balance -= amount
	m.balances[requesterID] = balance
	return balance, nil
}

// Credit adds amount to the requester's balance.
func (m *Memory) Credit(_ context.Context, requesterID string, amount int64) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	balance := m.balanceLocked(requesterID) + amount
	m.balances[requesterID] = balance
	return balance, nil
}

// Balance returns the requester's current balance.
func (m *Memory) Balance(requesterID string) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.balanceLocked(requesterID)
}

// SetBalance overwrites the requester's balance.
func (m *Memory) SetBalance(requesterID string, balance int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.balances[requesterID] = balance
}

func (m *Memory) balanceLocked(requesterID string) int64 {
	balance, known := m.balances[requesterID]
	if !known {
		balance = m.startingBalance
		m.balances[requesterID] = balance
	}
	return balance
}
