// Package provisioning prepares a camp for attendance taking once its
// registration closed: participant links, pending attendance records, the
// attendance folder tree and camper photos.
package provisioning

import "context"

// Step names one checkpointed workflow step.
type Step string

const (
	StepRootFolder        Step = "root_folder"
	StepGroupFolder       Step = "group_folder"
	StepParticipantLinks  Step = "participant_links"
	StepActivityFolders   Step = "activity_folders"
	StepAttendanceRecords Step = "attendance_records"
	StepCampersFolder     Step = "campers_folder"
	StepPhotos            Step = "photos"
	// StepCompleted is recorded once every step ran.
	StepCompleted Step = "completed"
)

// Pair is a (camper, activity schedule) combination.
type Pair struct {
	CamperID   int64
	ScheduleID int64
}

// Schedule is an activity schedule of a camp.
type Schedule struct {
	ID         int64
	Name       string
	IsOptional bool
}

// CamperGroup is a camper group of a camp.
type CamperGroup struct {
	ID   int64
	Name string
}

// CamperAvatar is a registered camper with the object key of their photo.
type CamperAvatar struct {
	CamperID  int64
	GroupID   *int64
	AvatarKey string
}

// Repository is the persistence the workflow needs. Inserts ignore rows
// that already exist.
type Repository interface {
	CampExists(ctx context.Context, campID int64) (bool, error)
	ListCheckpoints(ctx context.Context, campID int64) (map[Step]bool, error)
	RecordCheckpoint(ctx context.Context, campID int64, step Step) error

	FirstCamperGroup(ctx context.Context, campID int64) (*CamperGroup, error)
	ListSchedules(ctx context.Context, campID int64) ([]Schedule, error)
	// ListGroupMembers returns campers assigned to any group of the camp.
	ListGroupMembers(ctx context.Context, campID int64) ([]int64, error)
	// ListOptionalSelections returns optional activity choices of confirmed registrations.
	ListOptionalSelections(ctx context.Context, campID int64) ([]Pair, error)
	ListParticipantLinks(ctx context.Context, campID int64) ([]Pair, error)
	InsertParticipantLinks(ctx context.Context, pairs []Pair) (int, error)
	InsertPendingAttendance(ctx context.Context, pairs []Pair) (int, error)
	ListCamperAvatars(ctx context.Context, campID int64) ([]CamperAvatar, error)
}

// Report summarizes one workflow run.
type Report struct {
	CampID             int64    `json:"campId"`
	AlreadyProvisioned bool     `json:"alreadyProvisioned"`
	StepsRun           []string `json:"stepsRun,omitempty"`
	StepsSkipped       []string `json:"stepsSkipped,omitempty"`
	LinksCreated       int      `json:"linksCreated"`
	ActivityFolders    int      `json:"activityFolders"`
	RecordsCreated     int      `json:"recordsCreated"`
	PhotosCopied       int      `json:"photosCopied"`
	PhotosFailed       int      `json:"photosFailed"`
}
