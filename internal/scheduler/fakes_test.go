package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/internal/facerecognition"
	"summercamp_backend/platform/apperr"

	"github.com/hibiken/asynq"
)

type fakeCamps struct {
	mu         sync.Mutex
	camps      map[int64]*domain.Camp
	confirmed  map[int64]int
	overlapErr error
}

func newFakeCamps(camps ...domain.Camp) *fakeCamps {
	f := &fakeCamps{camps: make(map[int64]*domain.Camp), confirmed: make(map[int64]int)}
	for i := range camps {
		c := camps[i]
		f.camps[c.ID] = &c
	}
	return f
}

func (f *fakeCamps) GetByID(_ context.Context, id int64) (*domain.Camp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.camps[id]
	if !ok {
		return nil, apperr.NotFound("camp not found")
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCamps) CompareAndSetStatus(_ context.Context, id int64, from, to domain.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.camps[id]
	if !ok {
		return false, nil
	}
	current, err := c.Status()
	if err != nil || current != from {
		return false, nil
	}
	c.RawStatus = to.String()
	return true, nil
}

func (f *fakeCamps) CountConfirmedCampers(_ context.Context, campID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed[campID], nil
}

func (f *fakeCamps) ListActiveOverlapping(_ context.Context, campID int64, start, end, now time.Time) ([]domain.Camp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overlapErr != nil {
		return nil, f.overlapErr
	}
	var out []domain.Camp
	for id, c := range f.camps {
		if id == campID || c.Start == nil || c.End == nil || c.RawStatus == domain.StatusCanceled.String() {
			continue
		}
		if !c.Start.After(end) && !c.End.Before(start) && c.End.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCamps) ListUpcoming(_ context.Context, now time.Time) ([]domain.Camp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Camp
	for _, c := range f.camps {
		if c.RegistrationStart != nil && c.RegistrationStart.After(now) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCamps) status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.camps[id].RawStatus
}

type jobKey struct {
	campID  int64
	jobType JobType
}

type memJobStore struct {
	mu   sync.Mutex
	rows map[jobKey]ScheduledJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{rows: make(map[jobKey]ScheduledJob)}
}

func (s *memJobStore) UpsertPending(_ context.Context, job ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.State = JobStatePending
	job.Attempts = 0
	job.LastError = ""
	s.rows[jobKey{job.CampID, job.Type}] = job
	return nil
}

func (s *memJobStore) Get(_ context.Context, campID int64, jobType JobType) (*ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[jobKey{campID, jobType}]
	if !ok {
		return nil, apperr.NotFound("scheduled job not found")
	}
	return &job, nil
}

func (s *memJobStore) ListByCamp(_ context.Context, campID int64) ([]ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledJob
	for k, job := range s.rows {
		if k.campID == campID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

func (s *memJobStore) SetState(_ context.Context, campID int64, jobType JobType, state JobState, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[jobKey{campID, jobType}]
	if !ok {
		return nil
	}
	job.State = state
	job.LastError = lastErr
	if state == JobStateRunning {
		job.Attempts++
	}
	s.rows[jobKey{campID, jobType}] = job
	return nil
}

func (s *memJobStore) CountPending(_ context.Context, campID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, job := range s.rows {
		if k.campID == campID && job.State == JobStatePending {
			n++
		}
	}
	return n, nil
}

func (s *memJobStore) state(campID int64, jobType JobType) JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[jobKey{campID, jobType}].State
}

type queuedTask struct {
	taskType string
	payload  []byte
	runAt    time.Time
}

// fakeDispatcher mimics asynq TaskID uniqueness.
type fakeDispatcher struct {
	mu       sync.Mutex
	queued   map[string]queuedTask
	enqueues map[string]int
	canceled []string
	// active tasks are being processed and cannot be deleted.
	active map[string]bool
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{queued: make(map[string]queuedTask), enqueues: make(map[string]int)}
}

func (d *fakeDispatcher) Enqueue(_ context.Context, task *asynq.Task, jobName string, runAt time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.queued[jobName]; ok {
		return false, nil
	}
	d.queued[jobName] = queuedTask{taskType: task.Type(), payload: task.Payload(), runAt: runAt}
	d.enqueues[task.Type()]++
	return true, nil
}

func (d *fakeDispatcher) Cancel(_ context.Context, jobName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[jobName] {
		return nil
	}
	if _, ok := d.queued[jobName]; ok {
		delete(d.queued, jobName)
		d.canceled = append(d.canceled, jobName)
	}
	return nil
}

// complete drops a task as if the worker finished it.
func (d *fakeDispatcher) complete(jobName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.queued, jobName)
}

func (d *fakeDispatcher) task(jobName string) (queuedTask, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.queued[jobName]
	return t, ok
}

func (d *fakeDispatcher) count(taskType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enqueues[taskType]
}

type fakeGateway struct {
	mu        sync.Mutex
	loads     []int64
	unloads   []int64
	loadErr   error
	unloadErr error
}

func (g *fakeGateway) LoadDataset(_ context.Context, campID int64, _ bool) (facerecognition.LoadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads = append(g.loads, campID)
	if g.loadErr != nil {
		return facerecognition.LoadResult{}, g.loadErr
	}
	return facerecognition.LoadResult{Success: true, FaceCount: 3}, nil
}

func (g *fakeGateway) UnloadDataset(_ context.Context, campID int64) (facerecognition.UnloadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unloads = append(g.unloads, campID)
	if g.unloadErr != nil {
		return facerecognition.UnloadResult{}, g.unloadErr
	}
	return facerecognition.UnloadResult{Success: true}, nil
}

type fakeProvisioner struct {
	mu   sync.Mutex
	runs []int64
	err  error
}

func (p *fakeProvisioner) ProvisionCamp(_ context.Context, campID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, campID)
	return p.err
}

var errStorageDown = errors.New("storage down")
