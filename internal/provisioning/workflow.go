package provisioning

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/events"
	"summercamp_backend/internal/observability"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
)

const defaultPhotoConcurrency = 4

// Buckets names the object store buckets the workflow touches.
type Buckets struct {
	Attendance string
	Avatars    string
}

// Workflow provisions a camp for attendance taking. Every step is safe to
// repeat; completed steps are checkpointed so a retry resumes after them.
type Workflow struct {
	repo             Repository
	store            storage.FolderStore
	buckets          Buckets
	bus              events.Bus
	log              *logger.Logger
	photoConcurrency int
}

// NewWorkflow creates a workflow. bus may be nil.
func NewWorkflow(repo Repository, store storage.FolderStore, buckets Buckets, bus events.Bus, log *logger.Logger) *Workflow {
	return &Workflow{
		repo:             repo,
		store:            store,
		buckets:          buckets,
		bus:              bus,
		log:              log,
		photoConcurrency: defaultPhotoConcurrency,
	}
}

// ProvisionCamp runs the workflow and keeps only the error.
func (w *Workflow) ProvisionCamp(ctx context.Context, campID int64) error {
	_, err := w.Run(ctx, campID)
	return err
}

// run is the state of one workflow execution.
type run struct {
	campID int64
	done   map[Step]bool
	report *Report
}

// Run executes the workflow for a camp.
func (w *Workflow) Run(ctx context.Context, campID int64) (Report, error) {
	report := Report{CampID: campID}
	log := w.log.WithCamp(campID)

	exists, err := w.repo.CampExists(ctx, campID)
	if err != nil {
		return report, err
	}
	if !exists {
		return report, apperr.NotFound("camp not found")
	}

	done, err := w.repo.ListCheckpoints(ctx, campID)
	if err != nil {
		return report, err
	}

	rootExists, err := w.store.FolderExists(ctx, w.buckets.Attendance, storage.CampFolder(campID))
	if err != nil {
		return report, apperr.Infrastructure("failed to check camp folder", err)
	}
	if rootExists && done[StepCompleted] {
		log.Info("attendance already provisioned")
		report.AlreadyProvisioned = true
		w.publish(ctx, report)
		return report, nil
	}
	if !rootExists && len(done) > 0 {
		// Checkpoints outlived the camp folder; every step checks for existing
		// objects and rows, so start over.
		log.Warn("camp folder missing, ignoring checkpoints", "checkpoints", len(done))
		done = make(map[Step]bool)
	}

	r := &run{campID: campID, done: done, report: &report}
	steps := []struct {
		step Step
		fn   func(context.Context, *run) error
	}{
		{StepRootFolder, w.createRootFolder},
		{StepGroupFolder, w.createGroupFolder},
		{StepParticipantLinks, w.materializeLinks},
		{StepActivityFolders, w.createActivityFolders},
		{StepAttendanceRecords, w.pregenerateAttendance},
		{StepCampersFolder, w.createCampersFolder},
	}
	for _, s := range steps {
		if err := w.runStep(ctx, r, s.step, s.fn); err != nil {
			return report, err
		}
	}

	w.copyPhotos(ctx, r)
	observability.RecordProvisioningStep(string(StepPhotos), "done")

	if err := w.repo.RecordCheckpoint(ctx, campID, StepCompleted); err != nil {
		return report, err
	}

	log.Info("attendance provisioned",
		"links_created", report.LinksCreated,
		"activity_folders", report.ActivityFolders,
		"records_created", report.RecordsCreated,
		"photos_copied", report.PhotosCopied,
		"photos_failed", report.PhotosFailed,
	)
	w.publish(ctx, report)
	return report, nil
}

func (w *Workflow) runStep(ctx context.Context, r *run, step Step, fn func(context.Context, *run) error) error {
	if r.done[step] {
		r.report.StepsSkipped = append(r.report.StepsSkipped, string(step))
		observability.RecordProvisioningStep(string(step), "skipped")
		return nil
	}

	if err := fn(ctx, r); err != nil {
		observability.RecordProvisioningStep(string(step), "failed")
		w.log.WithCamp(r.campID).Error("provisioning step failed", "step", string(step), "error", err)
		return err
	}
	if err := w.repo.RecordCheckpoint(ctx, r.campID, step); err != nil {
		return err
	}
	r.done[step] = true
	r.report.StepsRun = append(r.report.StepsRun, string(step))
	observability.RecordProvisioningStep(string(step), "done")
	return nil
}

func (w *Workflow) createFolder(ctx context.Context, folder string) error {
	exists, err := w.store.FolderExists(ctx, w.buckets.Attendance, folder)
	if err != nil {
		return apperr.Infrastructure(fmt.Sprintf("failed to check folder %s", folder), err)
	}
	if exists {
		return nil
	}
	if err := w.store.CreateFolder(ctx, w.buckets.Attendance, folder); err != nil {
		return apperr.Infrastructure(fmt.Sprintf("failed to create folder %s", folder), err)
	}
	return nil
}

func (w *Workflow) createRootFolder(ctx context.Context, r *run) error {
	return w.createFolder(ctx, storage.CampFolder(r.campID))
}

func (w *Workflow) createGroupFolder(ctx context.Context, r *run) error {
	group, err := w.repo.FirstCamperGroup(ctx, r.campID)
	if err != nil {
		return err
	}
	if group == nil {
		w.log.WithCamp(r.campID).Warn("camp has no camper groups, no group folder created")
		return nil
	}
	return w.createFolder(ctx, storage.CamperGroupFolder(r.campID, group.ID))
}

func (w *Workflow) materializeLinks(ctx context.Context, r *run) error {
	selections, err := w.repo.ListOptionalSelections(ctx, r.campID)
	if err != nil {
		return err
	}
	created, err := w.repo.InsertParticipantLinks(ctx, selections)
	if err != nil {
		return err
	}
	r.report.LinksCreated = created
	return nil
}

func (w *Workflow) createActivityFolders(ctx context.Context, r *run) error {
	links, err := w.repo.ListParticipantLinks(ctx, r.campID)
	if err != nil {
		return err
	}
	for _, scheduleID := range distinctSchedules(links) {
		if err := w.createFolder(ctx, storage.ActivityFolder(r.campID, scheduleID)); err != nil {
			return err
		}
		r.report.ActivityFolders++
	}
	return nil
}

func (w *Workflow) pregenerateAttendance(ctx context.Context, r *run) error {
	schedules, err := w.repo.ListSchedules(ctx, r.campID)
	if err != nil {
		return err
	}
	members, err := w.repo.ListGroupMembers(ctx, r.campID)
	if err != nil {
		return err
	}
	links, err := w.repo.ListParticipantLinks(ctx, r.campID)
	if err != nil {
		return err
	}

	pairs := attendancePairs(schedules, members, links)
	created, err := w.repo.InsertPendingAttendance(ctx, pairs)
	if err != nil {
		return err
	}
	r.report.RecordsCreated = created
	return nil
}

func (w *Workflow) createCampersFolder(ctx context.Context, r *run) error {
	return w.createFolder(ctx, storage.CampersFolder(r.campID))
}

// copyPhotos copies every registered camper's avatar into their group folder
// and each linked activity folder. Failures are counted and skipped.
func (w *Workflow) copyPhotos(ctx context.Context, r *run) {
	log := w.log.WithCamp(r.campID)

	avatars, err := w.repo.ListCamperAvatars(ctx, r.campID)
	if err != nil {
		log.Error("failed to list camper avatars, photos not copied", "error", err)
		return
	}
	links, err := w.repo.ListParticipantLinks(ctx, r.campID)
	if err != nil {
		log.Error("failed to list participant links, photos not copied", "error", err)
		return
	}
	activities := make(map[int64][]int64)
	for _, l := range links {
		activities[l.CamperID] = append(activities[l.CamperID], l.ScheduleID)
	}

	var copied, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.photoConcurrency)

	for _, avatar := range avatars {
		var folders []string
		if avatar.GroupID != nil {
			folders = append(folders, storage.CamperGroupFolder(r.campID, *avatar.GroupID))
		}
		for _, scheduleID := range activities[avatar.CamperID] {
			folders = append(folders, storage.ActivityFolder(r.campID, scheduleID))
		}

		for _, folder := range folders {
			dst := storage.AvatarKey(folder, avatar.CamperID, avatar.AvatarKey)
			g.Go(func() error {
				if err := w.store.CopyObject(gctx, w.buckets.Avatars, avatar.AvatarKey, w.buckets.Attendance, dst); err != nil {
					failed.Add(1)
					log.Warn("camper photo copy failed", "camper_id", avatar.CamperID, "key", dst, "error", err)
					return nil
				}
				copied.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	r.report.PhotosCopied = int(copied.Load())
	r.report.PhotosFailed = int(failed.Load())
}

func (w *Workflow) publish(ctx context.Context, report Report) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.AttendanceProvisioned{
		BaseEvent:          events.NewBaseEvent(),
		CampID:             report.CampID,
		AlreadyProvisioned: report.AlreadyProvisioned,
		RecordsCreated:     report.RecordsCreated,
		PhotosCopied:       report.PhotosCopied,
		PhotosFailed:       report.PhotosFailed,
	})
}

// attendancePairs lists every (camper, schedule) that needs a record: core
// schedules for every group member, optional schedules for linked campers.
func attendancePairs(schedules []Schedule, members []int64, links []Pair) []Pair {
	optional := make(map[int64]bool, len(schedules))
	seen := make(map[Pair]bool)
	var pairs []Pair
	add := func(p Pair) {
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	for _, s := range schedules {
		if s.IsOptional {
			optional[s.ID] = true
			continue
		}
		for _, camperID := range members {
			add(Pair{CamperID: camperID, ScheduleID: s.ID})
		}
	}
	for _, l := range links {
		if optional[l.ScheduleID] {
			add(l)
		}
	}
	return pairs
}

func distinctSchedules(links []Pair) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range links {
		if !seen[l.ScheduleID] {
			seen[l.ScheduleID] = true
			ids = append(ids, l.ScheduleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
