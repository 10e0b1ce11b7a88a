// Package transport holds the camps admin request and response DTOs.
package transport

import (
	"summercamp_backend/internal/provisioning"
	"summercamp_backend/internal/scheduler"
)

// JobsResponse lists the scheduled jobs of a camp.
type JobsResponse struct {
	CampID int64                    `json:"campId"`
	Jobs   []scheduler.ScheduledJob `json:"jobs"`
}

// DeleteJobsResponse reports how many pending jobs were canceled.
type DeleteJobsResponse struct {
	CampID   int64 `json:"campId"`
	Canceled int   `json:"canceled"`
}

// RunJobResponse is the outcome of a force-run.
type RunJobResponse = scheduler.RunResult

// ProvisioningResponse is the outcome of a manual provisioning run.
type ProvisioningResponse = provisioning.Report

// ProvisioningRequest controls a manual provisioning run.
type ProvisioningRequest struct {
	// Async enqueues the workflow as a job instead of running it inline.
	Async bool `json:"async"`
}

// ProvisioningQueuedResponse is returned when the workflow was enqueued.
type ProvisioningQueuedResponse struct {
	CampID int64 `json:"campId"`
	Queued bool  `json:"queued"`
}
