// Package service applies face recognition results to attendance records.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/events"
	"summercamp_backend/internal/facerecognition"
	"summercamp_backend/internal/idempotency"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
	"summercamp_backend/platform/sanitize"
)

// Repository is the attendance persistence.
type Repository interface {
	GetSchedule(ctx context.Context, scheduleID int64) (*Schedule, error)
	ListCampCampers(ctx context.Context, campID int64) ([]Camper, error)
	// LatestRecord returns nil when the pair has no record yet.
	LatestRecord(ctx context.Context, camperID, scheduleID int64) (*Record, error)
	UpdateRecord(ctx context.Context, rec Record) error
	// InsertRecord creates the record, or overwrites the pair's record when a
	// concurrent writer created it first.
	InsertRecord(ctx context.Context, rec Record) (int64, error)
}

// Recognizer runs recognition on a photo.
type Recognizer interface {
	RecognizeGroup(ctx context.Context, campID, groupID int64, photo facerecognition.Photo) (facerecognition.RecognitionResult, error)
	RecognizeActivity(ctx context.Context, campID, scheduleID int64, photo facerecognition.Photo) (facerecognition.RecognitionResult, error)
}

// Options configures the service.
type Options struct {
	AttendanceBucket string
	IdempotencyTTL   time.Duration
	ClaimTTL         time.Duration
}

// Service reconciles recognition results into attendance records.
type Service struct {
	repo       Repository
	recognizer Recognizer
	store      storage.FolderStore
	cache      idempotency.Cache
	bus        events.Bus
	opts       Options
	log        *logger.Logger
	now        func() time.Time
}

// New creates the service. store and bus may be nil.
func New(repo Repository, recognizer Recognizer, store storage.FolderStore, cache idempotency.Cache,
	bus events.Bus, opts Options, log *logger.Logger) *Service {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = idempotency.DefaultResultTTL
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = idempotency.DefaultClaimTTL
	}
	return &Service{
		repo:       repo,
		recognizer: recognizer,
		store:      store,
		cache:      cache,
		bus:        bus,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// MatchFacesToCampers resolves faces that carry a camper id to campers of the
// schedule's camp. Faces without a camper id or with an unknown one are skipped.
func (s *Service) MatchFacesToCampers(ctx context.Context, scheduleID int64, faces []facerecognition.RecognizedFace) ([]RecognizedCamper, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	campers, err := s.repo.ListCampCampers(ctx, schedule.CampID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Camper, len(campers))
	for _, c := range campers {
		byID[c.ID] = c
	}

	matched := make([]RecognizedCamper, 0, len(faces))
	for _, face := range faces {
		if face.CamperID == nil {
			continue
		}
		camper, ok := byID[*face.CamperID]
		if !ok {
			s.log.Debug("recognized camper not in camp", "camper_id", *face.CamperID, "schedule_id", scheduleID)
			continue
		}
		matched = append(matched, RecognizedCamper{
			CamperID:    camper.ID,
			FirstName:   camper.FirstName,
			LastName:    camper.LastName,
			Confidence:  face.Confidence,
			BoundingBox: face.BoundingBox,
		})
	}
	return matched, nil
}

// UpdateAttendanceLogs marks every recognized camper present. Each camper is
// written on its own; failures are collected and reported as an error after
// all campers were attempted.
func (s *Service) UpdateAttendanceLogs(ctx context.Context, scheduleID int64, campers []RecognizedCamper, meta Metadata) (UpdateResult, error) {
	result := UpdateResult{ActivityScheduleID: scheduleID, Items: make([]ItemResult, 0, len(campers))}
	var errs []error

	for _, camper := range campers {
		action, err := s.applyRecognition(ctx, scheduleID, camper, meta)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, ItemResult{CamperID: camper.CamperID, Action: "failed", Error: err.Error()})
			errs = append(errs, fmt.Errorf("camper %d: %w", camper.CamperID, err))
			continue
		}
		if action == "updated" {
			result.Updated++
		} else {
			result.Created++
		}
		result.Items = append(result.Items, ItemResult{CamperID: camper.CamperID, Action: action})
	}

	s.publish(ctx, result, meta)

	if len(errs) > 0 {
		return result, apperr.Infrastructure(
			fmt.Sprintf("%d of %d attendance updates failed", len(errs), len(campers)),
			errors.Join(errs...),
		)
	}
	return result, nil
}

func (s *Service) applyRecognition(ctx context.Context, scheduleID int64, camper RecognizedCamper, meta Metadata) (string, error) {
	now := s.now().UTC()
	note := recognitionNote(camper.Confidence, meta.ProcessedBy)

	existing, err := s.repo.LatestRecord(ctx, camper.CamperID, scheduleID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		existing.Status = StatusPresent
		existing.CheckInMethod = MethodFaceRecognition
		existing.RecordedAt = &now
		existing.Note = note
		if err := s.repo.UpdateRecord(ctx, *existing); err != nil {
			return "", err
		}
		return "updated", nil
	}

	_, err = s.repo.InsertRecord(ctx, Record{
		CamperID:           camper.CamperID,
		ActivityScheduleID: scheduleID,
		Status:             StatusPresent,
		CheckInMethod:      MethodFaceRecognition,
		RecordedAt:         &now,
		Note:               note,
	})
	if err != nil {
		return "", err
	}
	return "created", nil
}

func recognitionNote(confidence float64, processedBy string) string {
	processedBy = sanitize.Label(processedBy, 64)
	if processedBy == "" {
		return fmt.Sprintf("Face recognition (confidence %.2f)", confidence)
	}
	return fmt.Sprintf("Face recognition by %s (confidence %.2f)", processedBy, confidence)
}

// RecognizeActivityPhoto sends a staff photo to recognition and applies the
// result. With a group id the photo is matched against that camper group,
// otherwise against the schedule's participants.
func (s *Service) RecognizeActivityPhoto(ctx context.Context, scheduleID int64, groupID *int64, fileName, contentType string, data []byte) (PhotoResult, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return PhotoResult{}, err
	}

	var out PhotoResult
	out.PhotoKey = s.archivePhoto(ctx, schedule, groupID, fileName, contentType, data)

	photo := facerecognition.Photo{FileName: fileName, ContentType: contentType, Data: bytes.NewReader(data)}
	var recognition facerecognition.RecognitionResult
	if groupID != nil {
		recognition, err = s.recognizer.RecognizeGroup(ctx, schedule.CampID, *groupID, photo)
	} else {
		recognition, err = s.recognizer.RecognizeActivity(ctx, schedule.CampID, scheduleID, photo)
	}
	if err != nil {
		return PhotoResult{}, err
	}
	out.TotalFacesDetected = recognition.TotalFacesDetected
	out.MatchedFaces = recognition.MatchedFaces

	out.Campers, err = s.MatchFacesToCampers(ctx, scheduleID, recognition.RecognizedFaces)
	if err != nil {
		return PhotoResult{}, err
	}

	meta := Metadata{RequestID: uuid.NewString(), ProcessedBy: "staff-upload"}
	out.Attendance, err = s.UpdateAttendanceLogs(ctx, scheduleID, out.Campers, meta)
	return out, err
}

// archivePhoto keeps the uploaded photo next to the provisioned folders. A
// failed upload does not block recognition.
func (s *Service) archivePhoto(ctx context.Context, schedule *Schedule, groupID *int64, fileName, contentType string, data []byte) string {
	if s.store == nil || s.opts.AttendanceBucket == "" {
		return ""
	}
	folder := storage.ActivityFolder(schedule.CampID, schedule.ID)
	if groupID != nil {
		folder = storage.CamperGroupFolder(schedule.CampID, *groupID)
	}
	key, err := s.store.UploadFile(ctx, s.opts.AttendanceBucket, folder, fileName, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.log.Warn("failed to archive activity photo", "schedule_id", schedule.ID, "error", err)
		return ""
	}
	return key
}

func (s *Service) publish(ctx context.Context, result UpdateResult, meta Metadata) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.AttendanceReconciled{
		BaseEvent:          events.NewBaseEvent(),
		ActivityScheduleID: result.ActivityScheduleID,
		RequestID:          meta.RequestID,
		Updated:            result.Updated,
		Created:            result.Created,
		Failed:             result.Failed,
	})
}
