package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"summercamp_backend/internal/provisioning"
	"summercamp_backend/internal/scheduler"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	jobs      []scheduler.ScheduledJob
	err       error
	ranName   string
	triggered int64
}

func (f *fakeJobs) ScheduleJobsForCamp(context.Context, int64) ([]scheduler.ScheduledJob, error) {
	return f.jobs, f.err
}

func (f *fakeJobs) GetJobsForCamp(context.Context, int64) ([]scheduler.ScheduledJob, error) {
	return f.jobs, f.err
}

func (f *fakeJobs) DeleteAllJobsForCamp(context.Context, int64) (int, error) {
	return len(f.jobs), f.err
}

func (f *fakeJobs) RebuildJobsForCamp(context.Context, int64) ([]scheduler.ScheduledJob, error) {
	return f.jobs, f.err
}

func (f *fakeJobs) ForceRunJob(_ context.Context, name string) (scheduler.RunResult, error) {
	f.ranName = name
	return scheduler.RunResult{JobName: name, Outcome: "applied"}, f.err
}

func (f *fakeJobs) TriggerProvisioning(_ context.Context, campID int64) (bool, error) {
	f.triggered = campID
	return true, f.err
}

type fakeRunner struct {
	campID int64
}

func (f *fakeRunner) Run(_ context.Context, campID int64) (provisioning.Report, error) {
	f.campID = campID
	return provisioning.Report{CampID: campID, RecordsCreated: 5}, nil
}

func setup(jobs *fakeJobs, runner *fakeRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(jobs, runner, validator.New()).RegisterRoutes(engine.Group("/admin"))
	return engine
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestScheduleAndListJobs(t *testing.T) {
	runAt := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{jobs: []scheduler.ScheduledJob{{CampID: 1, Type: scheduler.JobStart, Name: "Camp_1_Start", RunAt: runAt, State: scheduler.JobStatePending}}}
	engine := setup(jobs, &fakeRunner{})

	w := do(engine, http.MethodPost, "/admin/camps/1/jobs", "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(engine, http.MethodGet, "/admin/camps/1/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		CampID int64 `json:"campId"`
		Jobs   []struct {
			Name string `json:"jobName"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.CampID)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "Camp_1_Start", body.Jobs[0].Name)

	w = do(engine, http.MethodDelete, "/admin/camps/1/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"campId":1,"canceled":1}`, w.Body.String())
}

func TestInvalidCampID(t *testing.T) {
	engine := setup(&fakeJobs{}, &fakeRunner{})

	w := do(engine, http.MethodGet, "/admin/camps/abc/jobs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(engine, http.MethodPost, "/admin/camps/0/jobs/rebuild", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleJobsErrors(t *testing.T) {
	engine := setup(&fakeJobs{err: apperr.NotFound("camp 9 not found")}, &fakeRunner{})
	w := do(engine, http.MethodPost, "/admin/camps/9/jobs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	engine = setup(&fakeJobs{err: apperr.Validation("registration end must be after start")}, &fakeRunner{})
	w = do(engine, http.MethodPost, "/admin/camps/9/jobs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunJob(t *testing.T) {
	jobs := &fakeJobs{}
	w := do(setup(jobs, &fakeRunner{}), http.MethodPost, "/admin/jobs/Camp_3_RegistrationEnd/run", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Camp_3_RegistrationEnd", jobs.ranName)
}

func TestProvision(t *testing.T) {
	jobs := &fakeJobs{}
	runner := &fakeRunner{}
	engine := setup(jobs, runner)

	w := do(engine, http.MethodPost, "/admin/camps/4/provisioning", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), runner.campID)
	assert.Contains(t, w.Body.String(), `"recordsCreated":5`)

	w = do(engine, http.MethodPost, "/admin/camps/4/provisioning", `{"async": true}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int64(4), jobs.triggered)

	w = do(engine, http.MethodPost, "/admin/camps/4/provisioning", `{"async": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
