package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// MockCodeService is a mock implementation of service.CodeService.
type MockCodeService struct {
	mock.Mock
}

func (m *MockCodeService) Generate(ctx context.Context, input service.GenerateCodesInput) ([]domain.RedeemCode, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RedeemCode), args.Error(1)
}
