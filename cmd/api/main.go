package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/attendance"
	"summercamp_backend/internal/camps"
	"summercamp_backend/internal/camps/lifecycle"
	campsrepo "summercamp_backend/internal/camps/repository"
	"summercamp_backend/internal/email"
	"summercamp_backend/internal/events"
	"summercamp_backend/internal/facerecognition"
	apphttp "summercamp_backend/internal/http"
	"summercamp_backend/internal/http/router"
	"summercamp_backend/internal/idempotency"
	"summercamp_backend/internal/notification"
	"summercamp_backend/internal/observability"
	"summercamp_backend/internal/provisioning"
	"summercamp_backend/internal/scheduler"
	"summercamp_backend/migrations"
	"summercamp_backend/platform/config"
	"summercamp_backend/platform/db"
	"summercamp_backend/platform/logger"
	"summercamp_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc *storage.MinIOService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	observability.RegisterHandlers(eventBus)

	// Notification module subscribes to domain events (not HTTP-facing)
	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for attendance folders and photos (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, storageSvc, "attendance-sessions", cfg.GetMinioBucketAttendance())
	log.Info("storage service initialized",
		"attendanceBucket", cfg.GetMinioBucketAttendance(),
		"avatarBucket", cfg.GetMinioBucketCamperAvatars(),
	)

	jobClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		panic("failed to initialize job client: " + err.Error())
	}
	defer func() { _ = jobClient.Close() }()

	cache, closeCache := initIdempotencyCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	faceClient := facerecognition.NewClient(cfg)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	campRepo := campsrepo.New(pool)
	machine := lifecycle.New(campRepo, eventBus, log)
	jobStore := scheduler.NewPgJobStore(pool)

	workflow := provisioning.NewWorkflow(provisioning.NewRepository(pool), storageSvc, provisioning.Buckets{
		Attendance: cfg.GetMinioBucketAttendance(),
		Avatars:    cfg.GetMinioBucketCamperAvatars(),
	}, eventBus, log)

	faceJobs := scheduler.NewFaceDatasetJobs(campRepo, jobStore, jobClient, faceClient, cfg.GetFacePreloadBuffer(), log)
	milestones := scheduler.NewMilestoneScheduler(campRepo, machine, jobStore, jobClient, faceJobs, workflow, log)

	campsModule := camps.NewModule(milestones, workflow, val)
	attendanceModule := attendance.NewModule(pool, faceClient, storageSvc, cache, eventBus, val, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			campsModule,
			attendanceModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initIdempotencyCache(cfg *config.Config, log *logger.Logger) (idempotency.Cache, func()) {
	if cfg.GetIdempotencyBackend() == "memory" {
		log.Warn("using in-memory idempotency cache; duplicates are only detected within this process")
		return idempotency.NewMemoryCache(time.Now), nil
	}

	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	client := redis.NewClient(opts)
	return idempotency.NewRedisCache(client), func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
