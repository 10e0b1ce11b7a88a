package scheduler

import (
	"context"
	"strings"
	"time"

	"summercamp_backend/internal/camps/domain"
)

// JobType identifies one deferred job of a camp. Milestone jobs use the
// milestone name.
type JobType string

const (
	JobRegistrationStart = JobType(domain.MilestoneRegistrationStart)
	JobRegistrationEnd   = JobType(domain.MilestoneRegistrationEnd)
	JobStart             = JobType(domain.MilestoneStart)
	JobEnd               = JobType(domain.MilestoneEnd)
	JobFacePreload       JobType = "FacePreload"
	JobFaceUnload        JobType = "FaceUnload"
	JobProvisioning      JobType = "Provisioning"
)

// AllJobTypes lists every job a camp can own.
var AllJobTypes = []JobType{
	JobRegistrationStart,
	JobRegistrationEnd,
	JobStart,
	JobEnd,
	JobFacePreload,
	JobFaceUnload,
	JobProvisioning,
}

// ParseJobType matches raw case-insensitively against AllJobTypes.
func ParseJobType(raw string) (JobType, bool) {
	for _, jt := range AllJobTypes {
		if strings.EqualFold(string(jt), raw) {
			return jt, true
		}
	}
	return "", false
}

// Milestone returns the milestone behind a milestone job.
func (t JobType) Milestone() (domain.Milestone, bool) {
	m, err := domain.ParseMilestone(string(t))
	return m, err == nil
}

// JobState is the persisted state of a scheduled job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
	JobStateSkipped   JobState = "skipped"
)

// ScheduledJob is the bookkeeping row of a deferred job.
type ScheduledJob struct {
	CampID       int64     `json:"campId"`
	Type         JobType   `json:"jobType"`
	Name         string    `json:"jobName"`
	RunAt        time.Time `json:"runAt"`
	TargetStatus string    `json:"targetStatus,omitempty"`
	State        JobState  `json:"state"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"lastError,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JobStore persists ScheduledJob rows keyed by (camp, type).
type JobStore interface {
	// UpsertPending inserts or resets the row to pending.
	UpsertPending(ctx context.Context, job ScheduledJob) error
	Get(ctx context.Context, campID int64, jobType JobType) (*ScheduledJob, error)
	ListByCamp(ctx context.Context, campID int64) ([]ScheduledJob, error)
	// SetState moves the row to state. Moving to running counts an attempt.
	SetState(ctx context.Context, campID int64, jobType JobType, state JobState, lastErr string) error
	CountPending(ctx context.Context, campID int64) (int, error)
}

func jobName(campID int64, jobType JobType) string {
	return domain.JobName(campID, string(jobType))
}
