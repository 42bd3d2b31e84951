package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// MockAccountService is a mock implementation of service.AccountService.
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Me(ctx context.Context, accountID string) (*service.MeResult, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MeResult), args.Error(1)
}

func (m *MockAccountService) Redeem(ctx context.Context, accountID, code, ip string) (*domain.RedeemResult, error) {
	args := m.Called(ctx, accountID, code, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RedeemResult), args.Error(1)
}

func (m *MockAccountService) Usage(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.UsageLogEntry), args.Int(1), args.Error(2)
}
