package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"labtable/internal/domain"
)

var errInjected = errors.New("injected store failure")

// memStore is an in-memory implementation of the account, usage log and
// redeem code repositories with failure injection.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	logs     []domain.UsageLogEntry
	codes    map[string]*domain.RedeemCode

	failAppend   bool
	failCredit   bool
	failMarkUsed bool
	markUsed     int
	beforeDebit  func(accountID string)
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*domain.Account{},
		codes:    map[string]*domain.RedeemCode{},
	}
}

func (m *memStore) seedAccount(id string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &domain.Account{ID: id, Balance: balance}
}

func (m *memStore) seedCode(code string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = &domain.RedeemCode{Code: code, Amount: amount, Status: domain.CodeUnused}
}

func (m *memStore) balance(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memStore) code(code string) domain.RedeemCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.codes[code]
}

func (m *memStore) entries(id string) []domain.UsageLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UsageLogEntry
	for _, e := range m.logs {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) set(f func(*memStore)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m)
}

// AccountRepository

func (m *memStore) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; ok {
		return domain.ErrAccountExists
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) DebitIfSufficient(_ context.Context, id string, amount int64) (int64, error) {
	m.mu.Lock()
	hook := m.beforeDebit
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if a.Balance < amount {
		return 0, domain.ErrInsufficientBalance
	}
	a.Balance -= amount
	return a.Balance, nil
}

func (m *memStore) Credit(_ context.Context, id string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCredit {
		return 0, errInjected
	}
	a, ok := m.accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.Balance += amount
	return a.Balance, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

func (m *memStore) RecordLoginFailure(context.Context, string, int, time.Time) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) ResetLoginFailures(context.Context, string) error {
	return errors.New("not implemented")
}

// UsageLogRepository

func (m *memStore) Append(_ context.Context, e *domain.UsageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errInjected
	}
	m.logs = append(m.logs, *e)
	return nil
}

func (m *memStore) SumDeltas(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.logs {
		if e.AccountID == id {
			sum += e.Delta
		}
	}
	return sum, nil
}

func (m *memStore) ListByAccount(_ context.Context, id string, offset, limit int) ([]domain.UsageLogEntry, int, error) {
	all := m.entries(id)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memStore) SummarizeByAction(context.Context, time.Time, time.Time) ([]domain.ActionTotal, error) {
	return nil, errors.New("not implemented")
}

// RedeemCodeRepository

func (m *memStore) GetByCode(_ context.Context, code string) (*domain.RedeemCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.codes[code]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	cp := *rc
	return &cp, nil
}

func (m *memStore) MarkUsed(_ context.Context, code, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markUsed++
	if m.failMarkUsed {
		return errInjected
	}
	if _, ok := m.accounts[accountID]; !ok {
		return errInjected // foreign key on used_by
	}
	rc, ok := m.codes[code]
	if !ok || rc.Status != domain.CodeUnused {
		return domain.ErrCodeAlreadyUsed
	}
	rc.Status = domain.CodeUsed
	rc.UsedBy = &accountID
	rc.UsedAt = &at
	return nil
}

func (m *memStore) Release(_ context.Context, code, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.codes[code]
	if !ok || rc.UsedBy == nil || *rc.UsedBy != accountID {
		return domain.ErrNotFound
	}
	rc.Status = domain.CodeUnused
	rc.UsedBy = nil
	rc.UsedAt = nil
	return nil
}

func (m *memStore) CreateBatch(_ context.Context, codes []domain.RedeemCode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range codes {
		if _, ok := m.codes[codes[i].Code]; ok {
			continue
		}
		cp := codes[i]
		m.codes[cp.Code] = &cp
		n++
	}
	return n, nil
}

func newTestLedger(store *memStore) *Ledger {
	return New(store, store, store, Config{IdleTimeout: time.Minute})
}
