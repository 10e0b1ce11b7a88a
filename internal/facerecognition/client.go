// Package facerecognition is the HTTP client for the external face
// recognition service: dataset preload/unload and photo recognition.
package facerecognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/config"
)

// BoundingBox locates a face in the submitted photo.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecognizedFace is one face found by the service. CamperID is set only when
// the service matched the face against the loaded dataset.
type RecognizedFace struct {
	CamperID    *int64       `json:"camper_id,omitempty"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// LoadResult is the response of a dataset preload.
type LoadResult struct {
	Success   bool   `json:"success"`
	FaceCount int    `json:"face_count"`
	Message   string `json:"message"`
}

// UnloadResult is the response of a dataset unload.
type UnloadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecognitionResult is the response of a recognize call.
type RecognitionResult struct {
	Success            bool             `json:"success"`
	MatchedFaces       int              `json:"matched_faces"`
	TotalFacesDetected int              `json:"total_faces_detected"`
	RecognizedFaces    []RecognizedFace `json:"recognized_faces"`
	Message            string           `json:"message,omitempty"`
}

// Photo is an image submitted for recognition.
type Photo struct {
	FileName    string
	ContentType string
	Data        io.Reader
}

type loadRequest struct {
	CampID      int64 `json:"camp_id"`
	ForceReload bool  `json:"force_reload"`
}

// Client talks to the face recognition service.
type Client struct {
	baseURL    string
	tokens     *TokenIssuer
	httpClient *http.Client
}

// NewClient creates a new face recognition client.
func NewClient(cfg config.FaceRecognitionConfig) *Client {
	timeout := cfg.GetFaceRecognitionTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.GetFaceRecognitionURL(),
		tokens:  NewTokenIssuer(cfg),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LoadDataset asks the service to load the face templates of a camp.
func (c *Client) LoadDataset(ctx context.Context, campID int64, forceReload bool) (LoadResult, error) {
	body, err := json.Marshal(loadRequest{CampID: campID, ForceReload: forceReload})
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to marshal load request: %w", err)
	}

	var result LoadResult
	url := fmt.Sprintf("%s/face-db/load/%d", c.baseURL, campID)
	if err := c.do(ctx, http.MethodPost, url, ServiceFacePreload, "application/json", bytes.NewReader(body), &result); err != nil {
		return LoadResult{}, err
	}
	if !result.Success {
		return result, apperr.Infrastructure("face dataset load refused", errors.New(result.Message))
	}
	return result, nil
}

// UnloadDataset asks the service to drop the face templates of a camp.
func (c *Client) UnloadDataset(ctx context.Context, campID int64) (UnloadResult, error) {
	var result UnloadResult
	url := fmt.Sprintf("%s/face-db/unload/%d", c.baseURL, campID)
	if err := c.do(ctx, http.MethodDelete, url, ServiceFaceUnload, "", nil, &result); err != nil {
		return UnloadResult{}, err
	}
	if !result.Success {
		return result, apperr.Infrastructure("face dataset unload refused", errors.New(result.Message))
	}
	return result, nil
}

// RecognizeGroup recognizes campers of a camper group in photo.
func (c *Client) RecognizeGroup(ctx context.Context, campID, groupID int64, photo Photo) (RecognitionResult, error) {
	url := fmt.Sprintf("%s/recognition/recognize-group/%d/%d", c.baseURL, campID, groupID)
	return c.recognize(ctx, url, photo)
}

// RecognizeActivity recognizes participants of an activity schedule in photo.
func (c *Client) RecognizeActivity(ctx context.Context, campID, scheduleID int64, photo Photo) (RecognitionResult, error) {
	url := fmt.Sprintf("%s/recognition/recognize-activity/%d/%d", c.baseURL, campID, scheduleID)
	return c.recognize(ctx, url, photo)
}

func (c *Client) recognize(ctx context.Context, url string, photo Photo) (RecognitionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, photo.FileName))
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return RecognitionResult{}, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, photo.Data); err != nil {
		return RecognitionResult{}, fmt.Errorf("failed to read photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return RecognitionResult{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var result RecognitionResult
	if err := c.do(ctx, http.MethodPost, url, ServiceRecognition, mw.FormDataContentType(), &buf, &result); err != nil {
		return RecognitionResult{}, err
	}
	if !result.Success {
		return result, apperr.Infrastructure("face recognition refused", errors.New(result.Message))
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, url, service, contentType string, body io.Reader, out any) error {
	if c.baseURL == "" {
		return apperr.Infrastructure("face recognition service is not configured", nil)
	}

	token, err := c.tokens.Issue(service)
	if err != nil {
		return fmt.Errorf("failed to issue service token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return apperr.Timeout("face recognition service timed out", err)
		}
		return apperr.Infrastructure("face recognition request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return apperr.Infrastructure(
			fmt.Sprintf("face recognition service returned %d", resp.StatusCode),
			errors.New(string(payload)),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Infrastructure("failed to decode face recognition response", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
