package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
	"labtable/internal/experiment"
	"labtable/internal/service"
)

// MockArtifactService is a mock implementation of service.ArtifactService.
type MockArtifactService struct {
	mock.Mock
}

func (m *MockArtifactService) History(ctx context.Context, accountID string) ([]domain.ArtifactSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ArtifactSummary), args.Error(1)
}

func (m *MockArtifactService) Get(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactService) ImageURL(ctx context.Context, accountID string, id uuid.UUID) (string, error) {
	args := m.Called(ctx, accountID, id)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactService) PlotURL(ctx context.Context, accountID string, id uuid.UUID) (string, error) {
	args := m.Called(ctx, accountID, id)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactService) AttachPlot(ctx context.Context, input service.PlotUploadInput) (*domain.Artifact, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactService) Series(ctx context.Context, accountID string, id uuid.UUID) ([]experiment.Series, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]experiment.Series), args.Error(1)
}

func (m *MockArtifactService) Export(ctx context.Context, accountID string, id uuid.UUID, format service.ExportFormat, tableID string) (*service.ExportFile, error) {
	args := m.Called(ctx, accountID, id, format, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}
