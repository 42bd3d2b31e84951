package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
)

// MockLedger is a mock implementation of port.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Open(ctx context.Context, account *domain.Account, meta domain.Meta) (int64, error) {
	args := m.Called(ctx, account, meta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Consume(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error) {
	args := m.Called(ctx, accountID, amount, meta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Refund(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error) {
	args := m.Called(ctx, accountID, amount, meta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Redeem(ctx context.Context, accountID, code string, meta domain.Meta) (*domain.RedeemResult, error) {
	args := m.Called(ctx, accountID, code, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RedeemResult), args.Error(1)
}

func (m *MockLedger) Record(ctx context.Context, accountID string, action domain.LedgerAction, meta domain.Meta) error {
	args := m.Called(ctx, accountID, action, meta)
	return args.Error(0)
}

func (m *MockLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}
