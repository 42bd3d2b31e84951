// Package s3 keeps uploaded lab images and rendered plots in an S3 or
// S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"labtable/internal/config"
	"labtable/internal/domain"
	"labtable/internal/port"
)

// maxPresignExpiry is the longest validity S3 accepts for a SigV4 URL.
const maxPresignExpiry = 7 * 24 * time.Hour

// Store implements port.ObjectStorage.
type Store struct {
	api      *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	// maxObject caps the bytes Download will read; zero means no cap.
	maxObject int64
}

var _ port.ObjectStorage = (*Store)(nil)

// NewStore connects to the bucket described by cfg. Objects larger than
// maxObject bytes are refused on download.
func NewStore(ctx context.Context, cfg *config.S3Config, maxObject int64) (*Store, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// MinIO and friends only speak path-style addressing.
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{
		api:     api,
		presign: s3.NewPresignClient(api),
		// Images and plots fit in one part.
		uploader:  manager.NewUploader(api, func(u *manager.Uploader) { u.Concurrency = 1 }),
		maxObject: maxObject,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.S3Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("s3: loading aws config: %w", err)
	}
	return awsCfg, nil
}

// Upload writes one object. A known size is sent as Content-Length.
func (s *Store) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	put := &s3.PutObjectInput{
		Bucket:      aws.String(input.Bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(input.ContentType),
	}
	if input.Size > 0 {
		put.ContentLength = aws.Int64(input.Size)
	}
	out, err := s.uploader.Upload(ctx, put)
	if err != nil {
		return nil, objectError("upload", input.Key, err)
	}
	return &port.UploadOutput{Location: out.Location, ETag: aws.ToString(out.ETag)}, nil
}

// Download reads a whole object into memory. Missing keys yield
// domain.ErrImageNotFound and objects over the cap domain.ErrImageTooLarge.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, objectError("download", key, err)
	}
	defer obj.Body.Close()

	if s.maxObject > 0 && aws.ToInt64(obj.ContentLength) > s.maxObject {
		return nil, domain.ErrImageTooLarge
	}
	var body io.Reader = obj.Body
	if s.maxObject > 0 {
		body = io.LimitReader(obj.Body, s.maxObject+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, objectError("download", key, err)
	}
	if s.maxObject > 0 && int64(len(data)) > s.maxObject {
		return nil, domain.ErrImageTooLarge
	}
	return data, nil
}

// Delete removes key. S3 reports success for keys that do not exist, so the
// retention sweep can repeat a delete safely.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectError("delete", key, err)
	}
	return nil
}

// GetPresignedURL signs a GET for key, clamped to 1s..7d.
func (s *Store) GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	expiry := time.Duration(expirySeconds) * time.Second
	switch {
	case expiry < time.Second:
		expiry = time.Second
	case expiry > maxPresignExpiry:
		expiry = maxPresignExpiry
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", objectError("presign", key, err)
	}
	return req.URL, nil
}

func objectError(op, key string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return domain.ErrImageNotFound
	}
	return fmt.Errorf("s3 %s %q: %w", op, key, err)
}
