package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/camps/lifecycle"
	campsrepo "summercamp_backend/internal/camps/repository"
	"summercamp_backend/internal/email"
	"summercamp_backend/internal/events"
	"summercamp_backend/internal/facerecognition"
	"summercamp_backend/internal/notification"
	"summercamp_backend/internal/observability"
	"summercamp_backend/internal/provisioning"
	"summercamp_backend/internal/scheduler"
	"summercamp_backend/migrations"
	"summercamp_backend/platform/config"
	"summercamp_backend/platform/db"
	"summercamp_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

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

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	jobClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		panic("failed to initialize job client: " + err.Error())
	}
	defer func() { _ = jobClient.Close() }()

	campRepo := campsrepo.New(pool)
	machine := lifecycle.New(campRepo, eventBus, log)
	jobStore := scheduler.NewPgJobStore(pool)

	workflow := provisioning.NewWorkflow(provisioning.NewRepository(pool), storageSvc, provisioning.Buckets{
		Attendance: cfg.GetMinioBucketAttendance(),
		Avatars:    cfg.GetMinioBucketCamperAvatars(),
	}, eventBus, log)

	faceJobs := scheduler.NewFaceDatasetJobs(campRepo, jobStore, jobClient, facerecognition.NewClient(cfg), cfg.GetFacePreloadBuffer(), log)
	milestones := scheduler.NewMilestoneScheduler(campRepo, machine, jobStore, jobClient, faceJobs, workflow, log)

	sweep := scheduler.NewScheduleSweep(campRepo, jobStore, milestones, cfg.GetScheduleSweepCron(), log)
	go func() {
		if err := sweep.Run(ctx); err != nil {
			log.Error("schedule sweep stopped", "error", err)
		}
	}()

	go serveMetrics(ctx, cfg.GetSchedulerMetricsAddr(), log)

	worker, err := scheduler.NewWorker(cfg, milestones, faceJobs, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// serveMetrics exposes the job counters of this process for scraping.
func serveMetrics(ctx context.Context, addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server error", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
