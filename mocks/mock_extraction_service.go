package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// MockExtractionService is a mock implementation of service.ExtractionService.
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Extract(ctx context.Context, input service.ExtractInput) (*service.ExtractResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExtractResult), args.Error(1)
}

func (m *MockExtractionService) Preview(expID string, payload domain.Payload) (domain.Payload, error) {
	args := m.Called(expID, payload)
	return args.Get(0).(domain.Payload), args.Error(1)
}
