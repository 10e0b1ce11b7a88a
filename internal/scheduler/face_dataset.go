package scheduler

import (
	"context"
	"time"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/internal/facerecognition"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
)

const (
	defaultPreloadBuffer = 10 * time.Minute
	// overdueDelay is used when a face job's natural run time already passed.
	overdueDelay = 5 * time.Second
)

// FaceCampStore is the camp data the face dataset jobs read.
type FaceCampStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Camp, error)
	ListActiveOverlapping(ctx context.Context, campID int64, start, end, now time.Time) ([]domain.Camp, error)
}

// DatasetGateway loads and unloads face datasets at the recognition service.
type DatasetGateway interface {
	LoadDataset(ctx context.Context, campID int64, forceReload bool) (facerecognition.LoadResult, error)
	UnloadDataset(ctx context.Context, campID int64) (facerecognition.UnloadResult, error)
}

// FaceDatasetJobs preloads a camp's face dataset before the camp starts and
// unloads it after the camp ended, unless another running camp overlaps.
type FaceDatasetJobs struct {
	camps      FaceCampStore
	jobs       JobStore
	dispatcher Dispatcher
	gateway    DatasetGateway
	buffer     time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func NewFaceDatasetJobs(camps FaceCampStore, jobs JobStore, dispatcher Dispatcher, gateway DatasetGateway,
	buffer time.Duration, log *logger.Logger) *FaceDatasetJobs {
	if buffer <= 0 {
		buffer = defaultPreloadBuffer
	}
	return &FaceDatasetJobs{
		camps:      camps,
		jobs:       jobs,
		dispatcher: dispatcher,
		gateway:    gateway,
		buffer:     buffer,
		log:        log,
		now:        time.Now,
	}
}

// PreloadTime is when the dataset of camp should be loaded.
func (f *FaceDatasetJobs) PreloadTime(camp domain.Camp) time.Time {
	runAt := camp.Start.Add(-f.buffer)
	if now := f.now(); runAt.Before(now) {
		return now.Add(overdueDelay)
	}
	return runAt
}

// UnloadTime is midnight UTC of the day after the camp ends.
func (f *FaceDatasetJobs) UnloadTime(camp domain.Camp) time.Time {
	end := camp.End.UTC()
	runAt := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	if now := f.now(); runAt.Before(now) {
		return now.Add(overdueDelay)
	}
	return runAt
}

// SchedulePreload enqueues the preload job. It reports false when the camp
// already ended or a preload is already pending.
func (f *FaceDatasetJobs) SchedulePreload(ctx context.Context, camp domain.Camp) (bool, error) {
	if camp.Start == nil || camp.End == nil {
		return false, apperr.Validation("camp has no start or end date")
	}
	if !f.now().Before(*camp.End) {
		f.log.WithCamp(camp.ID).Info("face preload not scheduled: camp already ended")
		return false, nil
	}
	return f.schedule(ctx, camp.ID, JobFacePreload, TaskFacePreload, f.PreloadTime(camp))
}

// ScheduleUnload enqueues the unload job unless one is already pending.
func (f *FaceDatasetJobs) ScheduleUnload(ctx context.Context, camp domain.Camp) (bool, error) {
	if camp.End == nil {
		return false, apperr.Validation("camp has no end date")
	}
	return f.schedule(ctx, camp.ID, JobFaceUnload, TaskFaceUnload, f.UnloadTime(camp))
}

func (f *FaceDatasetJobs) schedule(ctx context.Context, campID int64, jobType JobType, taskType string, runAt time.Time) (bool, error) {
	existing, err := f.jobs.Get(ctx, campID, jobType)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return false, err
	}
	if existing != nil && existing.State == JobStatePending {
		return false, nil
	}

	task, err := NewCampTask(taskType, CampPayload{CampID: campID})
	if err != nil {
		return false, err
	}
	job := ScheduledJob{
		CampID: campID,
		Type:   jobType,
		Name:   jobName(campID, jobType),
		RunAt:  runAt,
		State:  JobStatePending,
	}
	enqueued, err := f.dispatcher.Enqueue(ctx, task, job.Name, runAt)
	if err != nil {
		return false, apperr.Infrastructure("failed to enqueue face dataset job", err)
	}
	if !enqueued {
		return false, nil
	}
	if err := f.jobs.UpsertPending(ctx, job); err != nil {
		return true, err
	}
	f.log.WithCamp(campID).Info("face dataset job scheduled", "job", job.Name, "run_at", runAt)
	return true, nil
}

// RunPreload loads the dataset. Errors are returned so the task retries.
func (f *FaceDatasetJobs) RunPreload(ctx context.Context, campID int64) error {
	started := f.now()
	f.markRunning(ctx, campID, JobFacePreload)

	result, err := f.gateway.LoadDataset(ctx, campID, false)
	if err != nil {
		finishJob(ctx, f.jobs, f.log, campID, JobFacePreload, JobStateFailed, err, started, f.now())
		return err
	}

	f.log.WithCamp(campID).Info("face dataset loaded", "faces", result.FaceCount)
	finishJob(ctx, f.jobs, f.log, campID, JobFacePreload, JobStateCompleted, nil, started, f.now())
	return nil
}

// RunUnload unloads the dataset when SafeToCleanup allows it. It reports
// false when the unload was skipped; skipped unloads are not rescheduled.
func (f *FaceDatasetJobs) RunUnload(ctx context.Context, campID int64) (bool, error) {
	started := f.now()
	f.markRunning(ctx, campID, JobFaceUnload)

	camp, err := f.camps.GetByID(ctx, campID)
	if err != nil {
		finishJob(ctx, f.jobs, f.log, campID, JobFaceUnload, JobStateFailed, err, started, f.now())
		return false, err
	}

	if !f.SafeToCleanup(ctx, *camp) {
		f.log.WithCamp(campID).Info("face dataset unload skipped: overlapping camp still active")
		finishJob(ctx, f.jobs, f.log, campID, JobFaceUnload, JobStateSkipped, nil, started, f.now())
		return false, nil
	}

	if _, err := f.gateway.UnloadDataset(ctx, campID); err != nil {
		finishJob(ctx, f.jobs, f.log, campID, JobFaceUnload, JobStateFailed, err, started, f.now())
		return false, err
	}

	f.log.WithCamp(campID).Info("face dataset unloaded")
	finishJob(ctx, f.jobs, f.log, campID, JobFaceUnload, JobStateCompleted, nil, started, f.now())
	return true, nil
}

// SafeToCleanup reports whether no other non-canceled camp overlapping camp
// is still running. Any error while checking counts as unsafe.
func (f *FaceDatasetJobs) SafeToCleanup(ctx context.Context, camp domain.Camp) bool {
	if camp.Start == nil || camp.End == nil {
		return false
	}
	now := f.now()
	others, err := f.camps.ListActiveOverlapping(ctx, camp.ID, *camp.Start, *camp.End, now)
	if err != nil {
		f.log.WithCamp(camp.ID).Error("overlap check failed, keeping dataset loaded", "error", err)
		return false
	}
	for _, other := range others {
		if other.ID != camp.ID && camp.Overlaps(other) && other.End.After(now) {
			return false
		}
	}
	return true
}

func (f *FaceDatasetJobs) markRunning(ctx context.Context, campID int64, jobType JobType) {
	if err := f.jobs.SetState(ctx, campID, jobType, JobStateRunning, ""); err != nil {
		f.log.WithCamp(campID).Warn("failed to mark job running", "job", jobName(campID, jobType), "error", err)
	}
}
