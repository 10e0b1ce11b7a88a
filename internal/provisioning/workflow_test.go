package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const campID int64 = 42

// memRepo holds the tables of a single camp.
type memRepo struct {
	mu          sync.Mutex
	campExists  bool
	checkpoints map[Step]bool
	groups      []CamperGroup
	schedules   []Schedule
	members     []int64
	selections  []Pair
	links       map[Pair]bool
	records     map[Pair]int
	avatars     []CamperAvatar
	linksErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		campExists:  true,
		checkpoints: make(map[Step]bool),
		links:       make(map[Pair]bool),
		records:     make(map[Pair]int),
	}
}

func (r *memRepo) CampExists(context.Context, int64) (bool, error) { return r.campExists, nil }

func (r *memRepo) ListCheckpoints(context.Context, int64) (map[Step]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Step]bool, len(r.checkpoints))
	for k, v := range r.checkpoints {
		out[k] = v
	}
	return out, nil
}

func (r *memRepo) RecordCheckpoint(_ context.Context, _ int64, step Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[step] = true
	return nil
}

func (r *memRepo) FirstCamperGroup(context.Context, int64) (*CamperGroup, error) {
	if len(r.groups) == 0 {
		return nil, nil
	}
	g := r.groups[0]
	return &g, nil
}

func (r *memRepo) ListSchedules(context.Context, int64) ([]Schedule, error) { return r.schedules, nil }

func (r *memRepo) ListGroupMembers(context.Context, int64) ([]int64, error) { return r.members, nil }

func (r *memRepo) ListOptionalSelections(context.Context, int64) ([]Pair, error) {
	return r.selections, nil
}

func (r *memRepo) ListParticipantLinks(context.Context, int64) ([]Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linksErr != nil {
		return nil, r.linksErr
	}
	out := make([]Pair, 0, len(r.links))
	for p := range r.links {
		out = append(out, p)
	}
	sortPairs(out)
	return out, nil
}

func (r *memRepo) InsertParticipantLinks(_ context.Context, pairs []Pair) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range pairs {
		if !r.links[p] {
			r.links[p] = true
			n++
		}
	}
	return n, nil
}

func (r *memRepo) InsertPendingAttendance(_ context.Context, pairs []Pair) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range pairs {
		if _, ok := r.records[p]; !ok {
			n++
		}
		r.records[p] = 1
	}
	return n, nil
}

func (r *memRepo) ListCamperAvatars(context.Context, int64) ([]CamperAvatar, error) {
	return r.avatars, nil
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ScheduleID != pairs[j].ScheduleID {
			return pairs[i].ScheduleID < pairs[j].ScheduleID
		}
		return pairs[i].CamperID < pairs[j].CamperID
	})
}

// memStore is an object store keyed by bucket/key.
type memStore struct {
	mu         sync.Mutex
	objects    map[string]bool
	failCreate map[string]error
	failCopy   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		objects:    make(map[string]bool),
		failCreate: make(map[string]error),
		failCopy:   make(map[string]error),
	}
}

func (s *memStore) FolderExists(_ context.Context, bucket, folder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[bucket+"/"+storage.MarkerKey(folder)], nil
}

func (s *memStore) CreateFolder(_ context.Context, bucket, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate[folder]; err != nil {
		return err
	}
	s.objects[bucket+"/"+storage.MarkerKey(folder)] = true
	return nil
}

func (s *memStore) CopyObject(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCopy[srcKey]; err != nil {
		return err
	}
	if !s.objects[srcBucket+"/"+srcKey] {
		return fmt.Errorf("no such key %s", srcKey)
	}
	s.objects[dstBucket+"/"+dstKey] = true
	return nil
}

func (s *memStore) UploadFile(context.Context, string, string, string, string, io.Reader, int64) (string, error) {
	return "", errors.New("not used")
}

func (s *memStore) EnsureBucketExists(context.Context, string) error { return nil }

func (s *memStore) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var testBuckets = Buckets{Attendance: "attendance-sessions", Avatars: "camper-avatars"}

// seededCamp: group 3 with campers 1..3, core schedule 9, optional schedules
// 10 (no registrants) and 11 (campers 1 and 2).
func seededCamp() (*memRepo, *memStore) {
	repo := newMemRepo()
	repo.groups = []CamperGroup{{ID: 3, Name: "Otters"}}
	repo.schedules = []Schedule{
		{ID: 9, Name: "Swimming"},
		{ID: 10, Name: "Archery", IsOptional: true},
		{ID: 11, Name: "Kayak", IsOptional: true},
	}
	repo.members = []int64{1, 2, 3}
	repo.selections = []Pair{{CamperID: 1, ScheduleID: 11}, {CamperID: 2, ScheduleID: 11}}
	repo.avatars = []CamperAvatar{
		{CamperID: 1, GroupID: ptr(int64(3)), AvatarKey: "uploads/anna.jpg"},
		{CamperID: 2, GroupID: ptr(int64(3)), AvatarKey: "uploads/ben.jpg"},
	}

	store := newMemStore()
	store.objects["camper-avatars/uploads/anna.jpg"] = true
	store.objects["camper-avatars/uploads/ben.jpg"] = true
	return repo, store
}

func ptr[T any](v T) *T { return &v }

func newTestWorkflow(repo *memRepo, store *memStore) *Workflow {
	return NewWorkflow(repo, store, testBuckets, nil, logger.Nop())
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	repo, store := seededCamp()
	wf := newTestWorkflow(repo, store)
	ctx := context.Background()

	first, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProvisioned)
	keysAfterFirst := store.keys("attendance-sessions/")
	links := len(repo.links)
	records := len(repo.records)

	second, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProvisioned)
	assert.Equal(t, keysAfterFirst, store.keys("attendance-sessions/"))
	assert.Equal(t, links, len(repo.links))
	assert.Equal(t, records, len(repo.records))
}

func TestExactlyOneRecordPerCamperAndSchedule(t *testing.T) {
	repo, store := seededCamp()
	// camper 1 selected kayak twice through two registrations
	repo.selections = append(repo.selections, Pair{CamperID: 1, ScheduleID: 11})

	report, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.NoError(t, err)

	want := map[Pair]int{
		{CamperID: 1, ScheduleID: 9}:  1,
		{CamperID: 2, ScheduleID: 9}:  1,
		{CamperID: 3, ScheduleID: 9}:  1,
		{CamperID: 1, ScheduleID: 11}: 1,
		{CamperID: 2, ScheduleID: 11}: 1,
	}
	assert.Equal(t, want, repo.records)
	assert.Equal(t, 5, report.RecordsCreated)
	assert.Equal(t, 2, report.LinksCreated)
}

func TestActivityFolderOnlyForSchedulesWithRegistrants(t *testing.T) {
	repo, store := seededCamp()

	report, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ActivityFolders)

	exists, _ := store.FolderExists(context.Background(), testBuckets.Attendance, storage.ActivityFolder(campID, 11))
	assert.True(t, exists)
	exists, _ = store.FolderExists(context.Background(), testBuckets.Attendance, storage.ActivityFolder(campID, 10))
	assert.False(t, exists)

	for _, folder := range []string{
		storage.CampFolder(campID),
		storage.CamperGroupFolder(campID, 3),
		storage.CampersFolder(campID),
	} {
		exists, _ := store.FolderExists(context.Background(), testBuckets.Attendance, folder)
		assert.True(t, exists, folder)
	}
}

func TestPhotosCopiedToGroupAndActivityFolders(t *testing.T) {
	repo, store := seededCamp()

	report, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.NoError(t, err)
	assert.Equal(t, 4, report.PhotosCopied)
	assert.Zero(t, report.PhotosFailed)

	keys := store.keys("attendance-sessions/camp_42/camper_group_3/avatar_")
	assert.Equal(t, []string{
		"attendance-sessions/camp_42/camper_group_3/avatar_1_anna.jpg",
		"attendance-sessions/camp_42/camper_group_3/avatar_2_ben.jpg",
	}, keys)
}

func TestPhotoFailureIsIsolated(t *testing.T) {
	repo, store := seededCamp()
	store.failCopy["uploads/anna.jpg"] = errors.New("access denied")

	report, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.PhotosCopied)
	assert.Equal(t, 2, report.PhotosFailed)
	assert.True(t, repo.checkpoints[StepCompleted])
}

func TestFolderFailureAbortsAndRetryResumes(t *testing.T) {
	repo, store := seededCamp()
	store.failCreate[storage.CampersFolder(campID)] = errors.New("bucket unavailable")
	wf := newTestWorkflow(repo, store)
	ctx := context.Background()

	_, err := wf.Run(ctx, campID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInfrastructure))
	assert.True(t, repo.checkpoints[StepAttendanceRecords])
	assert.False(t, repo.checkpoints[StepCampersFolder])
	assert.False(t, repo.checkpoints[StepCompleted])

	delete(store.failCreate, storage.CampersFolder(campID))
	report, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	assert.False(t, report.AlreadyProvisioned)
	assert.Equal(t, []string{
		string(StepRootFolder),
		string(StepGroupFolder),
		string(StepParticipantLinks),
		string(StepActivityFolders),
		string(StepAttendanceRecords),
	}, report.StepsSkipped)
	assert.Equal(t, []string{string(StepCampersFolder)}, report.StepsRun)
	assert.True(t, repo.checkpoints[StepCompleted])
}

func TestDataFailurePropagates(t *testing.T) {
	repo, store := seededCamp()
	repo.linksErr = errors.New("connection reset")

	_, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.Error(t, err)
	assert.True(t, repo.checkpoints[StepParticipantLinks])
	assert.False(t, repo.checkpoints[StepActivityFolders])
}

func TestMissingCampIsNotFound(t *testing.T) {
	repo, store := seededCamp()
	repo.campExists = false

	_, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCampWithoutGroupsStillProvisions(t *testing.T) {
	repo, store := seededCamp()
	repo.groups = nil
	repo.members = nil
	for i := range repo.avatars {
		repo.avatars[i].GroupID = nil
	}

	report, err := newTestWorkflow(repo, store).Run(context.Background(), campID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RecordsCreated)
	assert.Equal(t, 2, report.PhotosCopied)
}

func TestLostCampFolderIsRebuilt(t *testing.T) {
	repo, store := seededCamp()
	wf := newTestWorkflow(repo, store)
	ctx := context.Background()

	_, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	records := len(repo.records)
	delete(store.objects, testBuckets.Attendance+"/"+storage.MarkerKey(storage.CampFolder(campID)))

	report, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	assert.False(t, report.AlreadyProvisioned)
	assert.Empty(t, report.StepsSkipped)
	assert.Len(t, report.StepsRun, 6)
	assert.Zero(t, report.RecordsCreated)
	assert.Equal(t, records, len(repo.records))

	exists, _ := store.FolderExists(ctx, testBuckets.Attendance, storage.CampFolder(campID))
	assert.True(t, exists)

	again, err := wf.Run(ctx, campID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProvisioned)
}
