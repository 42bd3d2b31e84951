package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"labtable/internal/config"
	"labtable/internal/experiment"
	"labtable/internal/handler"
	"labtable/internal/ledger"
	"labtable/internal/middleware"
	"labtable/internal/repository/postgres"
	"labtable/internal/router"
	"labtable/internal/service"
	s3storage "labtable/internal/storage/s3"
	"labtable/internal/vision"
	"labtable/internal/vision/providers"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	registry, err := experiment.Load(cfg.Experiments.Dir)
	if err != nil {
		return fmt.Errorf("failed to load experiments: %w", err)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepo(db)
	usageLogRepo := postgres.NewUsageLogRepo(db)
	codeRepo := postgres.NewRedeemCodeRepo(db)
	artifactRepo := postgres.NewArtifactRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewStore(ctx, &cfg.S3, cfg.Extraction.MaxImageBytes)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize vision providers
	providers.Register()
	recognizer, err := vision.FromConfig(&cfg.Vision)
	if err != nil {
		return fmt.Errorf("failed to initialize vision provider: %w", err)
	}

	acctLedger := ledger.New(accountRepo, usageLogRepo, codeRepo, ledger.Config{IdleTimeout: cfg.Ledger.IdleTimeout})

	// Initialize services
	authSvc := service.NewAuthService(accountRepo, acctLedger, cfg.JWT, cfg.Auth)
	accountSvc := service.NewAccountService(acctLedger, usageLogRepo)
	uploadSvc := service.NewUploadService(s3Client, acctLedger, cfg.S3.Bucket, cfg.Extraction.MaxImageBytes)
	extractionSvc := service.NewExtractionService(registry, acctLedger, recognizer, s3Client, artifactRepo, service.ExtractionConfig{
		Bucket:         cfg.S3.Bucket,
		Cost:           cfg.Extraction.Cost,
		ArtifactTTL:    cfg.Extraction.ArtifactTTL,
		VisionTimeout:  cfg.Extraction.VisionTimeout,
		RefundAttempts: cfg.Ledger.RefundAttempts,
	})
	artifactSvc := service.NewArtifactService(artifactRepo, s3Client, registry, service.ArtifactConfig{
		Bucket:        cfg.S3.Bucket,
		PresignExpiry: cfg.S3.PresignExpiry,
		MaxPlotBytes:  cfg.Extraction.MaxImageBytes,
	})
	codeSvc := service.NewCodeService(codeRepo)
	retention := service.NewRetentionWorker(artifactRepo, s3Client, service.RetentionConfig{
		Bucket:       cfg.S3.Bucket,
		PollInterval: cfg.Retention.PollInterval,
		BatchSize:    cfg.Retention.BatchSize,
	})

	health := handler.NewHealthHandler(
		handler.PingCheck("database", db),
		handler.HealthCheck{Name: "ledger", Probe: acctLedger.Ready},
	)

	// Setup router
	r := router.Setup(authSvc, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Account:    handler.NewAccountHandler(accountSvc),
		Upload:     handler.NewUploadHandler(uploadSvc),
		Extraction: handler.NewExtractionHandler(extractionSvc),
		Artifact:   handler.NewArtifactHandler(artifactSvc),
		Admin:      handler.NewAdminHandler(codeSvc, retention),
		Health:     health,
	}, router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AdminSecret:    cfg.Auth.AdminSecret,
		Limiter:        middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		retention.Start(workerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			cancelWorker()
			<-workerDone
			acctLedger.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server forced to shutdown", zap.Error(err))
	}

	// In-flight requests have drained, so no new ledger work can arrive.
	cancelWorker()
	<-workerDone
	acctLedger.Close()

	zap.L().Info("server exited")
	return nil
}
