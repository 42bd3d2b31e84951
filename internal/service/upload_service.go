package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// ImageUploadInput is the DTO for image upload requests.
type ImageUploadInput struct {
	AccountID string
	IP        string
	File      multipart.File
	Size      int64
}

// UploadResult is returned by a successful upload.
type UploadResult struct {
	ImageKey    string `json:"image_key"`
	ContentType string `json:"content_type"`
}

// UploadService stores photos that extractions later refer to by key.
type UploadService interface {
	UploadImage(ctx context.Context, input ImageUploadInput) (*UploadResult, error)
}

type uploadService struct {
	storage  port.ObjectStorage
	ledger   port.Ledger
	bucket   string
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadService creates a new UploadService implementation.
func NewUploadService(storage port.ObjectStorage, ledger port.Ledger, bucket string, maxBytes int64) UploadService {
	return &uploadService{
		storage:  storage,
		ledger:   ledger,
		bucket:   bucket,
		maxBytes: maxBytes,
		logger:   zap.L().With(zap.String("component", "upload")),
	}
}

func (s *uploadService) UploadImage(ctx context.Context, input ImageUploadInput) (*UploadResult, error) {
	if input.Size <= 0 {
		return nil, fmt.Errorf("empty file: %w", domain.ErrInvalidInput)
	}
	if input.Size > s.maxBytes {
		return nil, domain.ErrImageTooLarge
	}

	contentType, err := sniffImage(input.File)
	if err != nil {
		return nil, err
	}

	key := domain.ImageKeyPrefix(input.AccountID) + uuid.NewString()
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        input.File,
		ContentType: contentType,
		Size:        input.Size,
	})
	if err != nil {
		return nil, domain.StorageError("upload", err)
	}

	s.logger.Info("image uploaded",
		zap.String("account_id", input.AccountID),
		zap.String("image_key", key),
		zap.Int64("size", input.Size))

	if err := s.ledger.Record(ctx, input.AccountID, domain.ActionUpload, domain.Meta{"image_key": key, "ip": input.IP}); err != nil {
		return nil, err
	}
	return &UploadResult{ImageKey: key, ContentType: contentType}, nil
}

// sniffImage detects the content type from the first 512 bytes and rewinds f.
func sniffImage(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading file header: %w", err)
	}
	contentType := http.DetectContentType(buf[:n])
	if _, ok := domain.AllowedImageTypes[contentType]; !ok {
		return "", domain.ErrUnsupportedImage
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking file: %w", err)
	}
	return contentType, nil
}
