package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"labtable/internal/domain"
)

// MockArtifactRepo is a mock implementation of port.ArtifactRepository.
type MockArtifactRepo struct {
	mock.Mock
}

func (m *MockArtifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockArtifactRepo) GetByID(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactRepo) ListActiveByAccount(ctx context.Context, accountID string, now time.Time, limit int) ([]domain.ArtifactSummary, error) {
	args := m.Called(ctx, accountID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ArtifactSummary), args.Error(1)
}

func (m *MockArtifactRepo) AttachPlot(ctx context.Context, accountID string, id uuid.UUID, plotKey string) error {
	args := m.Called(ctx, accountID, id, plotKey)
	return args.Error(0)
}

func (m *MockArtifactRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Artifact, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Artifact), args.Error(1)
}

func (m *MockArtifactRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockArtifactRepo) CountCreatedByAccount(ctx context.Context, since, until time.Time) (map[string]int64, error) {
	args := m.Called(ctx, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}
