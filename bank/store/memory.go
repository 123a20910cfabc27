// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/retail-ledger/bank"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements bank.Store and bank.AuditLog.
// Every method holds the lock for its whole duration, so each call is atomic.
type Memory struct {
	mu       sync.RWMutex
	users    map[bank.UserID]bank.User
	accounts map[bank.AcctNo]bank.Account
	events   []bank.AuditEvent
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[bank.UserID]bank.User),
		accounts: make(map[bank.AcctNo]bank.Account),
	}
}

func (m *Memory) FindUsers(_ context.Context, f bank.UserFilter) ([]bank.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []bank.User
	for _, u := range m.users {
		if f.ID != 0 && u.ID != f.ID {
			continue
		}
		if f.FirstName != "" && !strings.EqualFold(u.FirstName, f.FirstName) {
			continue
		}
		if f.Kind != "" && u.Kind != f.Kind {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) InsertUser(_ context.Context, u bank.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.users[u.ID]; taken {
		return 0, bank.ErrDuplicateKey
	}
	m.users[u.ID] = u
	return 1, nil
}

func (m *Memory) FindAccounts(_ context.Context, f bank.AccountFilter) ([]bank.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f.AcctNo != 0 {
		a, ok := m.accounts[f.AcctNo]
		if !ok || !f.Matches(a) {
			return nil, nil
		}
		return []bank.Account{a}, nil
	}

	var result []bank.Account
	for _, a := range m.accounts {
		if f.Matches(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AcctNo < result[j].AcctNo })
	return result, nil
}

func (m *Memory) InsertAccount(_ context.Context, a bank.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.accounts[a.AcctNo]; taken {
		return 0, bank.ErrDuplicateKey
	}
	m.accounts[a.AcctNo] = a
	return 1, nil
}

// UpdateBalance applies u only if the row is active and at u.ExpectedVersion.
func (m *Memory) UpdateBalance(_ context.Context, u bank.BalanceUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[u.AcctNo]
	if !ok || a.Status != bank.StatusActive || a.Version != u.ExpectedVersion {
		return 0, nil
	}
	if u.OwnerID != 0 && a.OwnerID != u.OwnerID {
		return 0, nil
	}
	a.Available = u.Available
	a.Remaining = u.Remaining
	a.Version++
	m.accounts[u.AcctNo] = a
	return 1, nil
}

// SetAccountStatus is the administrative path for closing accounts.
func (m *Memory) SetAccountStatus(_ context.Context, no bank.AcctNo, status bank.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[no]
	if !ok {
		return bank.ErrAccountNotFound
	}
	a.Status = status
	m.accounts[no] = a
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// Record appends e to the in-memory audit trail.
func (m *Memory) Record(_ context.Context, e bank.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Query returns matching events, newest first.
func (m *Memory) Query(_ context.Context, f bank.AuditFilter) ([]bank.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []bank.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if f.AcctNo != 0 && e.AcctNo != f.AcctNo {
			continue
		}
		if f.UserID != 0 && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
			continue
		}
		result = append(result, e)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

// Events returns every recorded event in order.
func (m *Memory) Events() []bank.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]bank.AuditEvent(nil), m.events...)
}

func containsAction(actions []bank.AuditAction, a bank.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
