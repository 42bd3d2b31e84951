package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labtable/internal/service"
)

// MockUploadService is a mock implementation of service.UploadService.
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) UploadImage(ctx context.Context, input service.ImageUploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}
