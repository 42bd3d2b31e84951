package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
)

// MockUsageLogRepo is a mock implementation of port.UsageLogRepository.
type MockUsageLogRepo struct {
	mock.Mock
}

func (m *MockUsageLogRepo) Append(ctx context.Context, entry *domain.UsageLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockUsageLogRepo) SumDeltas(ctx context.Context, accountID string) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageLogRepo) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.UsageLogEntry), args.Int(1), args.Error(2)
}

func (m *MockUsageLogRepo) SummarizeByAction(ctx context.Context, since, until time.Time) ([]domain.ActionTotal, error) {
	args := m.Called(ctx, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActionTotal), args.Error(1)
}
