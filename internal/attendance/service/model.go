package service

import (
	"time"

	"summercamp_backend/internal/facerecognition"
)

// Attendance status and check-in method values as persisted.
const (
	StatusPending = "Pending"
	StatusPresent = "Present"

	MethodNone            = "None"
	MethodFaceRecognition = "FaceRecognition"
)

// Schedule is an activity schedule with its camp.
type Schedule struct {
	ID     int64
	CampID int64
	Name   string
}

// Camper is a camper of a camp's groups.
type Camper struct {
	ID        int64
	FirstName string
	LastName  string
}

// Record is an attendance record.
type Record struct {
	ID                 int64
	CamperID           int64
	ActivityScheduleID int64
	Status             string
	CheckInMethod      string
	RecordedAt         *time.Time
	Note               string
}

// RecognizedCamper is a recognized face resolved to a local camper.
type RecognizedCamper struct {
	CamperID    int64                        `json:"camperId"`
	FirstName   string                       `json:"firstName"`
	LastName    string                       `json:"lastName"`
	Confidence  float64                      `json:"confidence"`
	BoundingBox *facerecognition.BoundingBox `json:"boundingBox,omitempty"`
}

// Metadata describes where a recognition result came from.
type Metadata struct {
	RequestID   string
	ProcessedBy string
}

// ItemResult is the outcome for one camper.
type ItemResult struct {
	CamperID int64  `json:"camperId"`
	Action   string `json:"action"`
	Error    string `json:"error,omitempty"`
}

// UpdateResult summarizes UpdateAttendanceLogs.
type UpdateResult struct {
	ActivityScheduleID int64        `json:"activityScheduleId"`
	Updated            int          `json:"updated"`
	Created            int          `json:"created"`
	Failed             int          `json:"failed"`
	Items              []ItemResult `json:"items"`
}

// PhotoResult is the outcome of a staff photo recognition.
type PhotoResult struct {
	PhotoKey           string             `json:"photoKey,omitempty"`
	TotalFacesDetected int                `json:"totalFacesDetected"`
	MatchedFaces       int                `json:"matchedFaces"`
	Campers            []RecognizedCamper `json:"campers"`
	Attendance         UpdateResult       `json:"attendance"`
}
