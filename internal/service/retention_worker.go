package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// RetentionConfig holds settings for the retention worker.
type RetentionConfig struct {
	Bucket       string
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// RetentionWorker deletes expired artifacts together with their image and plot blobs.
type RetentionWorker struct {
	artifacts port.ArtifactRepository
	storage   port.ObjectStorage
	cfg       RetentionConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewRetentionWorker creates a new RetentionWorker.
func NewRetentionWorker(artifacts port.ArtifactRepository, storage port.ObjectStorage, cfg RetentionConfig) *RetentionWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	return &RetentionWorker{
		artifacts: artifacts,
		storage:   storage,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.L().With(zap.String("component", "retention")),
	}
}

// Start runs a sweep on every tick until ctx is canceled.
func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("started", zap.Duration("poll", w.cfg.PollInterval), zap.Int("batch", w.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutdown complete")
			return
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("sweep failed", zap.Int("deleted", n), zap.Error(err))
				continue
			}
			if n > 0 {
				w.logger.Info("sweep finished", zap.Int("deleted", n))
			}
		}
	}
}

// Sweep deletes every artifact expired at the time of the call, one batch at
// a time, and returns how many rows were removed. Blob deletion is best effort;
// a failed row delete stops the sweep.
func (w *RetentionWorker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now()
	total := 0
	for {
		batch, err := w.artifacts.ListExpired(ctx, cutoff, w.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("retention: listing expired: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		n, err := w.deleteBatch(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
		if len(batch) < w.cfg.BatchSize {
			return total, nil
		}
	}
}

func (w *RetentionWorker) deleteBatch(ctx context.Context, batch []domain.Artifact) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	deleted := make([]bool, len(batch))
	for i := range batch {
		a := batch[i]
		g.Go(func() error {
			w.deleteBlob(gctx, a.ImageKey)
			if a.PlotKey != nil {
				w.deleteBlob(gctx, *a.PlotKey)
			}
			if err := w.artifacts.Delete(gctx, a.ID); err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
				return fmt.Errorf("retention: deleting artifact %s: %w", a.ID, err)
			}
			deleted[i] = true
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range deleted {
		if ok {
			n++
		}
	}
	return n, err
}

func (w *RetentionWorker) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := w.storage.Delete(ctx, w.cfg.Bucket, key); err != nil {
		w.logger.Warn("blob delete failed", zap.String("key", key), zap.Error(err))
	}
}
