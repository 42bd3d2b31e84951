package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtable/internal/domain"
	"labtable/internal/experiment"
	"labtable/internal/normalizer"
	"labtable/internal/port"
)

// ExtractInput is the DTO for extraction requests.
type ExtractInput struct {
	ExpID     string `json:"exp_id" binding:"required"`
	ImageKey  string `json:"image_key" binding:"required"`
	AccountID string `json:"-"`
	IP        string `json:"-"`
}

// ExtractResult is returned by a successful extraction.
type ExtractResult struct {
	ArtifactID uuid.UUID      `json:"artifact_id"`
	Payload    domain.Payload `json:"payload"`
	Balance    int64          `json:"balance"`
}

// ExtractionConfig holds orchestration settings.
type ExtractionConfig struct {
	Bucket         string
	Cost           int64
	ArtifactTTL    time.Duration
	VisionTimeout  time.Duration
	RefundAttempts int
}

// ExtractionService turns an uploaded photo into a persisted, schema-shaped artifact.
type ExtractionService interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractResult, error)
	// Preview normalizes an edited payload against its experiment schema without persisting anything.
	Preview(expID string, payload domain.Payload) (domain.Payload, error)
}

type extractionService struct {
	registry  *experiment.Registry
	ledger    port.Ledger
	vision    port.VisionRecognizer
	storage   port.ObjectStorage
	artifacts port.ArtifactRepository
	cfg       ExtractionConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewExtractionService creates a new ExtractionService implementation.
func NewExtractionService(
	registry *experiment.Registry,
	ledger port.Ledger,
	vision port.VisionRecognizer,
	storage port.ObjectStorage,
	artifacts port.ArtifactRepository,
	cfg ExtractionConfig,
) ExtractionService {
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}
	if cfg.RefundAttempts <= 0 {
		cfg.RefundAttempts = 1
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = 60 * time.Second
	}
	return &extractionService{
		registry:  registry,
		ledger:    ledger,
		vision:    vision,
		storage:   storage,
		artifacts: artifacts,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.L().With(zap.String("component", "extraction")),
	}
}

func (s *extractionService) Extract(ctx context.Context, input ExtractInput) (*ExtractResult, error) {
	exp, err := s.registry.Get(input.ExpID)
	if err != nil {
		return nil, err
	}
	if !domain.ImageKeyBelongsTo(input.ImageKey, input.AccountID) {
		return nil, domain.ErrForbidden
	}

	balance, err := s.ledger.Consume(ctx, input.AccountID, s.cfg.Cost, domain.Meta{
		"ip":        input.IP,
		"exp_id":    input.ExpID,
		"image_key": input.ImageKey,
	})
	if err != nil {
		return nil, err
	}

	// Debited from here on: every failure is refunded.
	result, err := s.extractDebited(ctx, exp, input)
	if err != nil {
		return nil, s.refund(ctx, input, err)
	}
	result.Balance = balance
	return result, nil
}

func (s *extractionService) extractDebited(ctx context.Context, exp *experiment.Experiment, input ExtractInput) (*ExtractResult, error) {
	image, err := s.storage.Download(ctx, s.cfg.Bucket, input.ImageKey)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return nil, err
		}
		return nil, domain.StorageError("image.download", err)
	}
	contentType := http.DetectContentType(image)
	if _, ok := domain.AllowedImageTypes[contentType]; !ok {
		return nil, domain.ErrUnsupportedImage
	}

	prompt, err := exp.ExtractionPrompt()
	if err != nil {
		return nil, fmt.Errorf("extraction: building prompt: %w", err)
	}

	visionCtx, cancel := context.WithTimeout(ctx, s.cfg.VisionTimeout)
	defer cancel()
	out, err := s.vision.Recognize(visionCtx, port.RecognizeInput{
		Prompt:      prompt,
		Image:       image,
		ContentType: contentType,
	})
	if err != nil {
		return nil, domain.UpstreamError(err)
	}

	payload := normalizer.Normalize(&exp.Schema, out.Candidate)

	now := s.now()
	artifact := &domain.Artifact{
		ID:        uuid.New(),
		AccountID: input.AccountID,
		ExpID:     exp.ExpID,
		Payload:   payload,
		ImageKey:  input.ImageKey,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ArtifactTTL),
	}
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, domain.StorageError("artifact.create", err)
	}

	s.logger.Info("extraction completed",
		zap.String("account_id", input.AccountID),
		zap.String("exp_id", exp.ExpID),
		zap.String("artifact_id", artifact.ID.String()),
		zap.String("model", out.ModelUsed))

	return &ExtractResult{ArtifactID: artifact.ID, Payload: payload}, nil
}

// refund returns the debit after a failed extraction. The original failure is
// always what the caller sees; when no attempt succeeds it comes back inside a
// RefundFailedError together with the last refund failure.
func (s *extractionService) refund(ctx context.Context, input ExtractInput, original error) error {
	refundCtx := context.WithoutCancel(ctx)
	meta := domain.Meta{"reason": "extract_failed", "exp_id": input.ExpID, "error_kind": string(domain.Kind(original))}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.RefundAttempts; attempt++ {
		_, lastErr = s.ledger.Refund(refundCtx, input.AccountID, s.cfg.Cost, meta)
		if lastErr == nil {
			s.logger.Info("extraction refunded",
				zap.String("account_id", input.AccountID),
				zap.Error(original))
			return original
		}
		s.logger.Warn("refund attempt failed",
			zap.String("account_id", input.AccountID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	s.logger.Error("refund failed permanently",
		zap.String("account_id", input.AccountID),
		zap.String("reason", "extract_failed"),
		zap.NamedError("original", original),
		zap.Error(lastErr))
	return &domain.RefundFailedError{Original: original, Refund: lastErr}
}

func (s *extractionService) Preview(expID string, payload domain.Payload) (domain.Payload, error) {
	exp, err := s.registry.Get(expID)
	if err != nil {
		return domain.Payload{}, err
	}
	out, err := normalizer.NormalizePayload(&exp.Schema, payload)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("extraction.Preview: %w", err)
	}
	return out, nil
}
