// Package handler exposes camp job management over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"summercamp_backend/internal/camps/transport"
	"summercamp_backend/internal/provisioning"
	"summercamp_backend/internal/scheduler"
	"summercamp_backend/platform/httpkit"
	"summercamp_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// JobManager is the scheduling surface used by the admin routes.
type JobManager interface {
	ScheduleJobsForCamp(ctx context.Context, campID int64) ([]scheduler.ScheduledJob, error)
	GetJobsForCamp(ctx context.Context, campID int64) ([]scheduler.ScheduledJob, error)
	DeleteAllJobsForCamp(ctx context.Context, campID int64) (int, error)
	RebuildJobsForCamp(ctx context.Context, campID int64) ([]scheduler.ScheduledJob, error)
	ForceRunJob(ctx context.Context, name string) (scheduler.RunResult, error)
	TriggerProvisioning(ctx context.Context, campID int64) (bool, error)
}

// ProvisioningRunner runs the provisioning workflow inline.
type ProvisioningRunner interface {
	Run(ctx context.Context, campID int64) (provisioning.Report, error)
}

// Handler handles camp admin HTTP requests.
type Handler struct {
	jobs        JobManager
	provisioner ProvisioningRunner
	val         *validator.Validator
}

// New creates a new camps handler.
func New(jobs JobManager, provisioner ProvisioningRunner, val *validator.Validator) *Handler {
	return &Handler{jobs: jobs, provisioner: provisioner, val: val}
}

// RegisterRoutes mounts the admin routes. Expected group: /admin
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	camps := rg.Group("/camps/:campId")
	camps.POST("/jobs", h.ScheduleJobs)
	camps.GET("/jobs", h.ListJobs)
	camps.DELETE("/jobs", h.DeleteJobs)
	camps.POST("/jobs/rebuild", h.RebuildJobs)
	camps.POST("/provisioning", h.Provision)

	rg.POST("/jobs/:jobName/run", h.RunJob)
}

// ScheduleJobs schedules the milestone and face dataset jobs of a camp.
func (h *Handler) ScheduleJobs(c *gin.Context) {
	campID, ok := campIDParam(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.ScheduleJobsForCamp(c.Request.Context(), campID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.JobsResponse{CampID: campID, Jobs: jobs})
}

// ListJobs lists the jobs recorded for a camp.
func (h *Handler) ListJobs(c *gin.Context) {
	campID, ok := campIDParam(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.GetJobsForCamp(c.Request.Context(), campID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.JobsResponse{CampID: campID, Jobs: jobs})
}

// DeleteJobs cancels every pending job of a camp.
func (h *Handler) DeleteJobs(c *gin.Context) {
	campID, ok := campIDParam(c)
	if !ok {
		return
	}
	canceled, err := h.jobs.DeleteAllJobsForCamp(c.Request.Context(), campID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DeleteJobsResponse{CampID: campID, Canceled: canceled})
}

// RebuildJobs cancels and reschedules the jobs of a camp.
func (h *Handler) RebuildJobs(c *gin.Context) {
	campID, ok := campIDParam(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.RebuildJobsForCamp(c.Request.Context(), campID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.JobsResponse{CampID: campID, Jobs: jobs})
}

// RunJob runs a job immediately by its name.
func (h *Handler) RunJob(c *gin.Context) {
	name := strings.TrimSpace(c.Param("jobName"))
	if err := h.val.Var(name, "required,max=128"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, nil)
		return
	}
	result, err := h.jobs.ForceRunJob(c.Request.Context(), name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RunJobResponse(result))
}

// Provision runs the attendance provisioning workflow for a camp.
func (h *Handler) Provision(c *gin.Context) {
	campID, ok := campIDParam(c)
	if !ok {
		return
	}

	var req transport.ProvisioningRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if req.Async {
		queued, err := h.jobs.TriggerProvisioning(c.Request.Context(), campID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.JSON(c, http.StatusAccepted, transport.ProvisioningQueuedResponse{CampID: campID, Queued: queued})
		return
	}

	report, err := h.provisioner.Run(c.Request.Context(), campID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ProvisioningResponse(report))
}

func campIDParam(c *gin.Context) (int64, bool) {
	campID, err := strconv.ParseInt(c.Param("campId"), 10, 64)
	if err != nil || campID <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return 0, false
	}
	return campID, true
}
