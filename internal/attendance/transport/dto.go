// Package transport holds the attendance request and response DTOs.
package transport

import (
	"summercamp_backend/internal/attendance/service"
	"summercamp_backend/internal/facerecognition"
)

// BoundingBoxDTO locates a face in the processed photo.
type BoundingBoxDTO struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// RecognizedFaceDTO is one face reported by the recognition service.
type RecognizedFaceDTO struct {
	CamperID    *int64          `json:"camperId" validate:"omitempty,gt=0"`
	Confidence  float64         `json:"confidence" validate:"gte=0,lte=1"`
	BoundingBox *BoundingBoxDTO `json:"boundingBox" validate:"omitempty"`
}

// RecognitionCallbackRequest is the webhook body sent by the recognition
// service once an asynchronous recognition finished.
type RecognitionCallbackRequest struct {
	RequestID          string              `json:"requestId" validate:"required,notblank,max=128"`
	ActivityScheduleID int64               `json:"activityScheduleId" validate:"required,gt=0"`
	ProcessedBy        string              `json:"processedBy" validate:"max=128"`
	RecognizedFaces    []RecognizedFaceDTO `json:"recognizedFaces" validate:"dive"`
}

// ToCallback converts the request into the service input.
func (r RecognitionCallbackRequest) ToCallback() service.Callback {
	faces := make([]facerecognition.RecognizedFace, 0, len(r.RecognizedFaces))
	for _, f := range r.RecognizedFaces {
		face := facerecognition.RecognizedFace{CamperID: f.CamperID, Confidence: f.Confidence}
		if f.BoundingBox != nil {
			face.BoundingBox = &facerecognition.BoundingBox{
				X:      f.BoundingBox.X,
				Y:      f.BoundingBox.Y,
				Width:  f.BoundingBox.Width,
				Height: f.BoundingBox.Height,
			}
		}
		faces = append(faces, face)
	}
	return service.Callback{
		RequestID:          r.RequestID,
		ActivityScheduleID: r.ActivityScheduleID,
		ProcessedBy:        r.ProcessedBy,
		Faces:              faces,
	}
}

// RecognizePhotoForm holds the non-file fields of a staff photo upload.
type RecognizePhotoForm struct {
	CamperGroupID *int64 `form:"camperGroupId" validate:"omitempty,gt=0"`
}
