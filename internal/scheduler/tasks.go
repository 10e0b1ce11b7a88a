package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskCampMilestone = "camps.milestone"

const TaskFacePreload = "faces.preload"

const TaskFaceUnload = "faces.unload"

const TaskAttendanceProvisioning = "attendance.provision"

// maxRetry is the retry budget of every camp task.
const maxRetry = 3

var (
	milestoneRetryDelays = []time.Duration{60 * time.Second, 300 * time.Second, 600 * time.Second}
	faceRetryDelays      = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
)

type CampMilestonePayload struct {
	CampID    int64  `json:"campId"`
	Milestone string `json:"milestone"`
}

type CampPayload struct {
	CampID int64 `json:"campId"`
}

func NewCampMilestoneTask(payload CampMilestonePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCampMilestone, data, asynq.MaxRetry(maxRetry)), nil
}

func ParseCampMilestonePayload(task *asynq.Task) (CampMilestonePayload, error) {
	var payload CampMilestonePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CampMilestonePayload{}, err
	}
	return payload, nil
}

// NewCampTask builds a face dataset or provisioning task.
func NewCampTask(taskType string, payload CampPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(maxRetry)), nil
}

func ParseCampPayload(task *asynq.Task) (CampPayload, error) {
	var payload CampPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CampPayload{}, err
	}
	return payload, nil
}

// retryDelay is the asynq RetryDelayFunc. retried counts earlier retries.
func retryDelay(retried int, _ error, task *asynq.Task) time.Duration {
	delays := milestoneRetryDelays
	switch task.Type() {
	case TaskFacePreload, TaskFaceUnload:
		delays = faceRetryDelays
	}
	if retried < 0 {
		retried = 0
	}
	if retried >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[retried]
}
