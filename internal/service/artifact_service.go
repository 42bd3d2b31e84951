package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtable/internal/domain"
	"labtable/internal/experiment"
	"labtable/internal/export"
	"labtable/internal/port"
)

// HistoryLimit is the number of artifacts returned by History.
const HistoryLimit = 50

// ExportFormat selects the spreadsheet format of an artifact export.
type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
)

// ExportFile is a rendered artifact export.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// PlotUploadInput is the DTO for attaching a rendered plot to an artifact.
type PlotUploadInput struct {
	AccountID  string
	ArtifactID uuid.UUID
	Body       io.Reader
	Size       int64
}

// ArtifactService defines read access to extraction results plus late plot attachment.
type ArtifactService interface {
	History(ctx context.Context, accountID string) ([]domain.ArtifactSummary, error)
	Get(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error)
	ImageURL(ctx context.Context, accountID string, id uuid.UUID) (string, error)
	PlotURL(ctx context.Context, accountID string, id uuid.UUID) (string, error)
	AttachPlot(ctx context.Context, input PlotUploadInput) (*domain.Artifact, error)
	Series(ctx context.Context, accountID string, id uuid.UUID) ([]experiment.Series, error)
	Export(ctx context.Context, accountID string, id uuid.UUID, format ExportFormat, tableID string) (*ExportFile, error)
}

// ArtifactConfig holds artifact access settings.
type ArtifactConfig struct {
	Bucket        string
	PresignExpiry int64
	MaxPlotBytes  int64
}

type artifactService struct {
	artifacts port.ArtifactRepository
	storage   port.ObjectStorage
	registry  *experiment.Registry
	cfg       ArtifactConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewArtifactService creates a new ArtifactService implementation.
func NewArtifactService(
	artifacts port.ArtifactRepository,
	storage port.ObjectStorage,
	registry *experiment.Registry,
	cfg ArtifactConfig,
) ArtifactService {
	return &artifactService{
		artifacts: artifacts,
		storage:   storage,
		registry:  registry,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.L().With(zap.String("component", "artifact")),
	}
}

func (s *artifactService) History(ctx context.Context, accountID string) ([]domain.ArtifactSummary, error) {
	items, err := s.artifacts.ListActiveByAccount(ctx, accountID, s.now(), HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("artifact.History: %w", err)
	}
	if items == nil {
		items = []domain.ArtifactSummary{}
	}
	return items, nil
}

// Get returns the artifact if accountID owns it and it has not expired.
func (s *artifactService) Get(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error) {
	a, err := s.artifacts.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if a.IsExpired(s.now()) {
		return nil, domain.ErrArtifactExpired
	}
	return a, nil
}

func (s *artifactService) ImageURL(ctx context.Context, accountID string, id uuid.UUID) (string, error) {
	a, err := s.Get(ctx, accountID, id)
	if err != nil {
		return "", err
	}
	if a.ImageKey == "" {
		return "", domain.ErrImageNotFound
	}
	return s.presign(ctx, a.ImageKey)
}

func (s *artifactService) PlotURL(ctx context.Context, accountID string, id uuid.UUID) (string, error) {
	a, err := s.Get(ctx, accountID, id)
	if err != nil {
		return "", err
	}
	if a.PlotKey == nil {
		return "", domain.ErrImageNotFound
	}
	return s.presign(ctx, *a.PlotKey)
}

func (s *artifactService) presign(ctx context.Context, key string) (string, error) {
	url, err := s.storage.GetPresignedURL(ctx, s.cfg.Bucket, key, s.cfg.PresignExpiry)
	if err != nil {
		return "", domain.StorageError("presign", err)
	}
	return url, nil
}

// AttachPlot stores a PNG plot and binds it to the artifact. A plot can be
// attached once; the artifact payload itself never changes.
func (s *artifactService) AttachPlot(ctx context.Context, input PlotUploadInput) (*domain.Artifact, error) {
	a, err := s.Get(ctx, input.AccountID, input.ArtifactID)
	if err != nil {
		return nil, err
	}
	if a.PlotKey != nil {
		return nil, domain.ErrPlotAlreadyAttached
	}
	if input.Size <= 0 {
		return nil, fmt.Errorf("empty plot: %w", domain.ErrInvalidInput)
	}
	if s.cfg.MaxPlotBytes > 0 && input.Size > s.cfg.MaxPlotBytes {
		return nil, domain.ErrImageTooLarge
	}

	// Each attempt writes its own object so a losing attempt only removes its own blob.
	key := fmt.Sprintf("%splots/%s-%s.png", domain.ImageKeyPrefix(input.AccountID), a.ID, uuid.New())
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        input.Body,
		ContentType: "image/png",
		Size:        input.Size,
	})
	if err != nil {
		return nil, domain.StorageError("plot.upload", err)
	}

	if err := s.artifacts.AttachPlot(ctx, input.AccountID, a.ID, key); err != nil {
		if derr := s.storage.Delete(context.WithoutCancel(ctx), s.cfg.Bucket, key); derr != nil {
			s.logger.Warn("removing orphaned plot failed", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	a.PlotKey = &key
	return a, nil
}

func (s *artifactService) Series(ctx context.Context, accountID string, id uuid.UUID) ([]experiment.Series, error) {
	a, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	exp, err := s.registry.Get(a.ExpID)
	if err != nil {
		return nil, err
	}
	return exp.Series(a.Payload), nil
}

func (s *artifactService) Export(ctx context.Context, accountID string, id uuid.UUID, format ExportFormat, tableID string) (*ExportFile, error) {
	a, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	exp, err := s.registry.Get(a.ExpID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	base := fmt.Sprintf("%s-%s", a.ExpID, a.ID.String()[:8])
	switch format {
	case ExportXLSX, "":
		if err := export.WriteXLSX(&buf, &exp.Schema, a.Payload); err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        buf.Bytes(),
		}, nil
	case ExportCSV:
		if tableID == "" && len(exp.Tables) > 0 {
			tableID = exp.Tables[0].ID
		}
		if err := export.WriteCSV(&buf, &exp.Schema, a.Payload, tableID); err != nil {
			return nil, err
		}
		return &ExportFile{
			Name:        fmt.Sprintf("%s-%s.csv", base, tableID),
			ContentType: "text/csv; charset=utf-8",
			Data:        buf.Bytes(),
		}, nil
	default:
		return nil, fmt.Errorf("export format %q: %w", format, domain.ErrInvalidInput)
	}
}
