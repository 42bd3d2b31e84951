package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
)

// MockRedeemCodeRepo is a mock implementation of port.RedeemCodeRepository.
type MockRedeemCodeRepo struct {
	mock.Mock
}

func (m *MockRedeemCodeRepo) GetByCode(ctx context.Context, code string) (*domain.RedeemCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RedeemCode), args.Error(1)
}

func (m *MockRedeemCodeRepo) MarkUsed(ctx context.Context, code, accountID string, at time.Time) error {
	args := m.Called(ctx, code, accountID, at)
	return args.Error(0)
}

func (m *MockRedeemCodeRepo) Release(ctx context.Context, code, accountID string) error {
	args := m.Called(ctx, code, accountID)
	return args.Error(0)
}

func (m *MockRedeemCodeRepo) CreateBatch(ctx context.Context, codes []domain.RedeemCode) (int, error) {
	args := m.Called(ctx, codes)
	return args.Int(0), args.Error(1)
}
