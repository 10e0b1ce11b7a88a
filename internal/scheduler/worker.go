package scheduler

import (
	"context"
	"fmt"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/platform/config"
	"summercamp_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	milestones *MilestoneScheduler
	faces      *FaceDatasetJobs
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, milestones *MilestoneScheduler, faces *FaceDatasetJobs, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		RetryDelayFunc: retryDelay,
		Logger:         log.ForAsynq(),
	})

	w := &Worker{
		server:     server,
		milestones: milestones,
		faces:      faces,
		log:        log,
	}
	w.mux = w.routes()

	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskCampMilestone, w.handleCampMilestone)
	mux.HandleFunc(TaskAttendanceProvisioning, w.handleProvisioning)
	mux.HandleFunc(TaskFacePreload, w.handleFacePreload)
	mux.HandleFunc(TaskFaceUnload, w.handleFaceUnload)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleCampMilestone(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCampMilestonePayload(task)
	if err != nil {
		return permanent(err)
	}
	milestone, err := domain.ParseMilestone(payload.Milestone)
	if err != nil || payload.CampID <= 0 {
		return permanent(fmt.Errorf("invalid milestone payload: %s", task.Payload()))
	}

	_, err = w.milestones.RunMilestone(ctx, payload.CampID, milestone, SourceScheduledJob)
	return err
}

func (w *Worker) handleProvisioning(ctx context.Context, task *asynq.Task) error {
	campID, err := campIDFrom(task)
	if err != nil {
		return err
	}
	return w.milestones.RunProvisioning(ctx, campID)
}

func (w *Worker) handleFacePreload(ctx context.Context, task *asynq.Task) error {
	campID, err := campIDFrom(task)
	if err != nil {
		return err
	}
	return w.faces.RunPreload(ctx, campID)
}

func (w *Worker) handleFaceUnload(ctx context.Context, task *asynq.Task) error {
	campID, err := campIDFrom(task)
	if err != nil {
		return err
	}
	_, err = w.faces.RunUnload(ctx, campID)
	return err
}

func campIDFrom(task *asynq.Task) (int64, error) {
	payload, err := ParseCampPayload(task)
	if err != nil {
		return 0, permanent(err)
	}
	if payload.CampID <= 0 {
		return 0, permanent(fmt.Errorf("invalid camp id in payload: %s", task.Payload()))
	}
	return payload.CampID, nil
}

// permanent marks payload errors that no retry can fix. Everything else a
// handler returns, including NotFound and Validation, uses the retry budget.
func permanent(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}
