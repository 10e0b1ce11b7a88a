package service

import (
	"context"
	"encoding/json"
	"fmt"

	"summercamp_backend/internal/facerecognition"
	"summercamp_backend/internal/idempotency"
	"summercamp_backend/internal/observability"
	"summercamp_backend/platform/apperr"
)

// Callback is an asynchronous recognition result delivered by the face
// recognition service. RequestID is unique per result.
type Callback struct {
	RequestID          string
	ActivityScheduleID int64
	ProcessedBy        string
	Faces              []facerecognition.RecognizedFace
}

// CallbackResponse is the body returned for a processed callback.
type CallbackResponse struct {
	RequestID  string             `json:"requestId"`
	Campers    []RecognizedCamper `json:"campers"`
	Attendance UpdateResult       `json:"attendance"`
}

// ProcessCallback applies a callback once per request id. A redelivery of a
// processed request returns the stored response with replay set.
func (s *Service) ProcessCallback(ctx context.Context, cb Callback) (body []byte, replay bool, err error) {
	claim, err := s.cache.Begin(ctx, cb.RequestID, s.opts.ClaimTTL)
	if err != nil {
		return nil, false, apperr.Infrastructure("idempotency cache unavailable", err)
	}

	switch claim.State {
	case idempotency.StateDone:
		observability.RecordIdempotentReplay()
		s.log.WithContext(ctx).Info("recognition callback replayed", "request_id", cb.RequestID)
		return claim.Result, true, nil
	case idempotency.StateInProgress:
		return nil, false, apperr.Conflict(fmt.Sprintf("request %s is already being processed", cb.RequestID))
	}

	body, err = s.reconcile(ctx, cb)
	if err != nil {
		if clearErr := s.cache.Clear(ctx, cb.RequestID); clearErr != nil {
			s.log.Warn("failed to release idempotency claim", "request_id", cb.RequestID, "error", clearErr)
		}
		return nil, false, err
	}

	if err := s.cache.MarkProcessed(ctx, cb.RequestID, body, s.opts.IdempotencyTTL); err != nil {
		// The work is committed; a redelivery will re-apply the same values.
		s.log.Warn("failed to cache recognition result", "request_id", cb.RequestID, "error", err)
	}
	return body, false, nil
}

func (s *Service) reconcile(ctx context.Context, cb Callback) ([]byte, error) {
	campers, err := s.MatchFacesToCampers(ctx, cb.ActivityScheduleID, cb.Faces)
	if err != nil {
		return nil, err
	}
	meta := Metadata{RequestID: cb.RequestID, ProcessedBy: cb.ProcessedBy}
	result, err := s.UpdateAttendanceLogs(ctx, cb.ActivityScheduleID, campers, meta)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(CallbackResponse{RequestID: cb.RequestID, Campers: campers, Attendance: result})
	if err != nil {
		return nil, fmt.Errorf("failed to encode callback response: %w", err)
	}
	return body, nil
}
