package scheduler

import (
	"context"
	"fmt"
	"time"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/internal/camps/lifecycle"
	"summercamp_backend/internal/observability"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
)

// Sources recorded on status changes.
const (
	SourceScheduledJob = "scheduled-job"
	SourceForceRun     = "force-run"
)

// CampReader is the camp data the milestone scheduler reads.
type CampReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Camp, error)
	CountConfirmedCampers(ctx context.Context, campID int64) (int, error)
}

// Transitioner applies a camp status change.
type Transitioner interface {
	Transition(ctx context.Context, campID int64, target domain.Status, source string) (lifecycle.Outcome, error)
}

// Provisioner runs the attendance provisioning workflow of a camp.
type Provisioner interface {
	ProvisionCamp(ctx context.Context, campID int64) error
}

// RunResult reports what running a job did.
type RunResult struct {
	JobName      string   `json:"jobName"`
	CampID       int64    `json:"campId"`
	JobType      JobType  `json:"jobType"`
	TargetStatus string   `json:"targetStatus,omitempty"`
	Outcome      string   `json:"outcome"`
	FollowUps    []string `json:"followUps,omitempty"`
}

// MilestoneScheduler owns the deferred jobs of each camp.
type MilestoneScheduler struct {
	camps       CampReader
	machine     Transitioner
	jobs        JobStore
	dispatcher  Dispatcher
	faces       *FaceDatasetJobs
	provisioner Provisioner
	log         *logger.Logger
	now         func() time.Time
}

// NewMilestoneScheduler wires the scheduler. provisioner may be nil in
// processes that only enqueue jobs.
func NewMilestoneScheduler(camps CampReader, machine Transitioner, jobs JobStore, dispatcher Dispatcher,
	faces *FaceDatasetJobs, provisioner Provisioner, log *logger.Logger) *MilestoneScheduler {
	return &MilestoneScheduler{
		camps:       camps,
		machine:     machine,
		jobs:        jobs,
		dispatcher:  dispatcher,
		faces:       faces,
		provisioner: provisioner,
		log:         log,
		now:         time.Now,
	}
}

// ScheduleJobsForCamp replaces the milestone jobs of a camp with one job per
// milestone whose date is still ahead.
func (s *MilestoneScheduler) ScheduleJobsForCamp(ctx context.Context, campID int64) ([]ScheduledJob, error) {
	camp, err := s.camps.GetByID(ctx, campID)
	if err != nil {
		return nil, err
	}
	if !camp.HasAllDates() {
		return nil, apperr.Validation("camp has incomplete milestone dates")
	}
	now := s.now()
	if err := camp.ValidateSchedule(now); err != nil {
		return nil, err
	}

	if _, err := s.cancelAll(ctx, campID); err != nil {
		return nil, err
	}

	scheduled := make([]ScheduledJob, 0, len(domain.Milestones))
	for _, m := range domain.Milestones {
		fireAt := m.FireTime(*camp)
		if fireAt == nil || !fireAt.After(now) {
			continue
		}

		task, err := NewCampMilestoneTask(CampMilestonePayload{CampID: campID, Milestone: string(m)})
		if err != nil {
			return nil, err
		}

		job := ScheduledJob{
			CampID:       campID,
			Type:         JobType(m),
			Name:         domain.JobName(campID, string(m)),
			RunAt:        *fireAt,
			TargetStatus: m.TargetStatus().String(),
			State:        JobStatePending,
		}
		enqueued, err := s.dispatcher.Enqueue(ctx, task, job.Name, job.RunAt)
		if err != nil {
			return nil, apperr.Infrastructure("failed to enqueue milestone job", err)
		}
		if !enqueued {
			// A running task still holds the id; its row keeps its current state.
			s.log.WithCamp(campID).Warn("milestone job not rescheduled, task id in use", "job", job.Name)
			continue
		}
		if err := s.jobs.UpsertPending(ctx, job); err != nil {
			return nil, err
		}
		scheduled = append(scheduled, job)
	}

	s.log.WithCamp(campID).Info("camp milestone jobs scheduled", "count", len(scheduled))
	return scheduled, nil
}

// GetJobsForCamp lists the job rows of a camp.
func (s *MilestoneScheduler) GetJobsForCamp(ctx context.Context, campID int64) ([]ScheduledJob, error) {
	if _, err := s.camps.GetByID(ctx, campID); err != nil {
		return nil, err
	}
	return s.jobs.ListByCamp(ctx, campID)
}

// DeleteAllJobsForCamp cancels every queued job of a camp and returns how
// many pending jobs were canceled.
func (s *MilestoneScheduler) DeleteAllJobsForCamp(ctx context.Context, campID int64) (int, error) {
	return s.cancelAll(ctx, campID)
}

// RebuildJobsForCamp deletes then reschedules the jobs of a camp.
func (s *MilestoneScheduler) RebuildJobsForCamp(ctx context.Context, campID int64) ([]ScheduledJob, error) {
	if _, err := s.DeleteAllJobsForCamp(ctx, campID); err != nil {
		return nil, err
	}
	return s.ScheduleJobsForCamp(ctx, campID)
}

// ForceRunJob runs a job by name now, through the same path the worker uses.
func (s *MilestoneScheduler) ForceRunJob(ctx context.Context, name string) (RunResult, error) {
	campID, kind, err := domain.ParseJobName(name)
	if err != nil {
		return RunResult{}, apperr.Validation(err.Error())
	}
	jobType, ok := ParseJobType(kind)
	if !ok {
		return RunResult{}, apperr.Validation(fmt.Sprintf("unknown job type %q", kind))
	}

	if m, ok := jobType.Milestone(); ok {
		return s.RunMilestone(ctx, campID, m, SourceForceRun)
	}

	if _, err := s.camps.GetByID(ctx, campID); err != nil {
		return RunResult{}, err
	}
	result := RunResult{JobName: jobName(campID, jobType), CampID: campID, JobType: jobType}
	switch jobType {
	case JobFacePreload:
		err = s.faces.RunPreload(ctx, campID)
	case JobFaceUnload:
		var unloaded bool
		unloaded, err = s.faces.RunUnload(ctx, campID)
		if err == nil && !unloaded {
			result.Outcome = string(JobStateSkipped)
			return result, nil
		}
	case JobProvisioning:
		err = s.RunProvisioning(ctx, campID)
	}
	if err != nil {
		return RunResult{}, err
	}
	result.Outcome = string(JobStateCompleted)
	return result, nil
}

// RunMilestone transitions the camp for milestone and runs the follow-up
// jobs of the milestone once the camp is in the target status.
func (s *MilestoneScheduler) RunMilestone(ctx context.Context, campID int64, m domain.Milestone, source string) (RunResult, error) {
	started := s.now()
	jobType := JobType(m)
	result := RunResult{JobName: jobName(campID, jobType), CampID: campID, JobType: jobType}
	log := s.log.WithCamp(campID)

	if err := s.jobs.SetState(ctx, campID, jobType, JobStateRunning, ""); err != nil {
		log.Warn("failed to mark job running", "job", result.JobName, "error", err)
	}

	// A missing camp is left to the state machine, which reports NotFound.
	camp, err := s.camps.GetByID(ctx, campID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		s.finish(ctx, campID, jobType, JobStateFailed, err, started)
		return RunResult{}, err
	}

	target := m.TargetStatus()
	if camp != nil {
		if target, err = s.milestoneTarget(ctx, camp, m); err != nil {
			s.finish(ctx, campID, jobType, JobStateFailed, err, started)
			return RunResult{}, err
		}
	}
	result.TargetStatus = target.String()

	outcome, err := s.machine.Transition(ctx, campID, target, source)
	if err != nil {
		s.finish(ctx, campID, jobType, JobStateFailed, err, started)
		return RunResult{}, err
	}
	result.Outcome = outcome.String()

	if !outcome.OK() || camp == nil {
		log.JobEvent("milestone_skipped", result.JobName, nil)
		s.finish(ctx, campID, jobType, JobStateSkipped, nil, started)
		return result, nil
	}

	followUps, err := s.followUps(ctx, camp, m, target)
	result.FollowUps = followUps
	if err != nil {
		s.finish(ctx, campID, jobType, JobStateFailed, err, started)
		return result, err
	}

	log.JobEvent("milestone_completed", result.JobName, nil)
	s.finish(ctx, campID, jobType, JobStateCompleted, nil, started)
	return result, nil
}

// milestoneTarget applies the minimum enrolment rule at registration close.
func (s *MilestoneScheduler) milestoneTarget(ctx context.Context, camp *domain.Camp, m domain.Milestone) (domain.Status, error) {
	target := m.TargetStatus()
	if m != domain.MilestoneRegistrationEnd || camp.MinParticipants == nil || *camp.MinParticipants <= 0 {
		return target, nil
	}

	confirmed, err := s.camps.CountConfirmedCampers(ctx, camp.ID)
	if err != nil {
		return domain.StatusUnknown, err
	}
	if confirmed < *camp.MinParticipants {
		s.log.WithCamp(camp.ID).Info("camp under-enrolled at registration close",
			"confirmed", confirmed, "minimum", *camp.MinParticipants)
		return domain.StatusUnderEnrolled, nil
	}
	return target, nil
}

func (s *MilestoneScheduler) followUps(ctx context.Context, camp *domain.Camp, m domain.Milestone, target domain.Status) ([]string, error) {
	var done []string
	switch {
	case m == domain.MilestoneRegistrationEnd && target == domain.StatusRegistrationClosed:
		if _, err := s.TriggerProvisioning(ctx, camp.ID); err != nil {
			return done, err
		}
		done = append(done, string(JobProvisioning))

		if _, err := s.faces.SchedulePreload(ctx, *camp); err != nil {
			return done, err
		}
		done = append(done, string(JobFacePreload))

	case m == domain.MilestoneEnd:
		if _, err := s.faces.ScheduleUnload(ctx, *camp); err != nil {
			return done, err
		}
		done = append(done, string(JobFaceUnload))
	}
	return done, nil
}

// TriggerProvisioning enqueues the provisioning job to run now. A job that is
// already pending counts as triggered; it reports whether a task was enqueued.
func (s *MilestoneScheduler) TriggerProvisioning(ctx context.Context, campID int64) (bool, error) {
	existing, err := s.jobs.Get(ctx, campID, JobProvisioning)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return false, err
	}
	if existing != nil && existing.State == JobStatePending {
		return false, nil
	}

	task, err := NewCampTask(TaskAttendanceProvisioning, CampPayload{CampID: campID})
	if err != nil {
		return false, err
	}
	job := ScheduledJob{
		CampID: campID,
		Type:   JobProvisioning,
		Name:   jobName(campID, JobProvisioning),
		RunAt:  s.now(),
		State:  JobStatePending,
	}
	enqueued, err := s.dispatcher.Enqueue(ctx, task, job.Name, job.RunAt)
	if err != nil {
		return false, apperr.Infrastructure("failed to enqueue provisioning job", err)
	}
	if !enqueued {
		return false, nil
	}
	if err := s.jobs.UpsertPending(ctx, job); err != nil {
		return true, err
	}
	s.log.WithCamp(campID).JobEvent("provisioning_triggered", job.Name, nil)
	return true, nil
}

// RunProvisioning executes the provisioning job of a camp.
func (s *MilestoneScheduler) RunProvisioning(ctx context.Context, campID int64) error {
	started := s.now()
	if s.provisioner == nil {
		return apperr.Internal("provisioning is not available in this process")
	}
	if err := s.jobs.SetState(ctx, campID, JobProvisioning, JobStateRunning, ""); err != nil {
		s.log.WithCamp(campID).Warn("failed to mark job running", "job", jobName(campID, JobProvisioning), "error", err)
	}

	err := s.provisioner.ProvisionCamp(ctx, campID)
	if err != nil {
		s.finish(ctx, campID, JobProvisioning, JobStateFailed, err, started)
		return err
	}
	s.finish(ctx, campID, JobProvisioning, JobStateCompleted, nil, started)
	return nil
}

func (s *MilestoneScheduler) cancelAll(ctx context.Context, campID int64) (int, error) {
	for _, jt := range AllJobTypes {
		if err := s.dispatcher.Cancel(ctx, jobName(campID, jt)); err != nil {
			return 0, apperr.Infrastructure("failed to cancel job", err)
		}
	}

	jobs, err := s.jobs.ListByCamp(ctx, campID)
	if err != nil {
		return 0, err
	}
	canceled := 0
	for _, job := range jobs {
		if job.State != JobStatePending {
			continue
		}
		if err := s.jobs.SetState(ctx, campID, job.Type, JobStateCanceled, ""); err != nil {
			return canceled, err
		}
		canceled++
	}
	if canceled > 0 {
		s.log.WithCamp(campID).Info("camp jobs canceled", "count", canceled)
	}
	return canceled, nil
}

// finish records the final job state and metrics. A failure to persist the
// state is logged only; the task outcome is what asynq acts on.
func (s *MilestoneScheduler) finish(ctx context.Context, campID int64, jobType JobType, state JobState, runErr error, started time.Time) {
	finishJob(ctx, s.jobs, s.log, campID, jobType, state, runErr, started, s.now())
}

func finishJob(ctx context.Context, jobs JobStore, log *logger.Logger, campID int64, jobType JobType,
	state JobState, runErr error, started, finished time.Time) {
	var msg string
	if runErr != nil {
		msg = runErr.Error()
		log.WithCamp(campID).JobEvent("job_failed", jobName(campID, jobType), runErr)
	}
	if err := jobs.SetState(ctx, campID, jobType, state, msg); err != nil {
		log.WithCamp(campID).Warn("failed to record job state", "job", jobName(campID, jobType), "state", string(state), "error", err)
	}
	observability.RecordJobRun(string(jobType), string(state), finished.Sub(started).Seconds())
}
