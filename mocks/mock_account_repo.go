package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
)

// MockAccountRepo is a mock implementation of port.AccountRepository.
type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepo) DebitIfSufficient(ctx context.Context, id string, amount int64) (int64, error) {
	args := m.Called(ctx, id, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepo) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	args := m.Called(ctx, id, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountRepo) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (*domain.Account, error) {
	args := m.Called(ctx, id, threshold, lockUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepo) ResetLoginFailures(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
