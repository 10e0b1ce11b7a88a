package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"summercamp_backend/internal/attendance/service"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	callbacks []service.Callback
	replay    bool
	err       error
	groupID   *int64
	photo     []byte
}

func (f *fakeReconciler) ProcessCallback(_ context.Context, cb service.Callback) ([]byte, bool, error) {
	f.callbacks = append(f.callbacks, cb)
	if f.err != nil {
		return nil, false, f.err
	}
	return []byte(`{"requestId":"` + cb.RequestID + `"}`), f.replay, nil
}

func (f *fakeReconciler) RecognizeActivityPhoto(_ context.Context, _ int64, groupID *int64, _, _ string, data []byte) (service.PhotoResult, error) {
	f.groupID = groupID
	f.photo = data
	return service.PhotoResult{TotalFacesDetected: 1}, f.err
}

func newRouter(f *fakeReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := New(f, validator.New())
	h.RegisterWebhookRoutes(engine.Group("/webhook"))
	h.RegisterRoutes(engine.Group("/attendance"))
	return engine
}

const callbackBody = `{
	"requestId": "abc",
	"activityScheduleId": 10,
	"processedBy": "face-service",
	"recognizedFaces": [
		{"camperId": 7, "confidence": 0.93, "boundingBox": {"x": 1, "y": 2, "width": 3, "height": 4}},
		{"confidence": 0.5}
	]
}`

func postCallback(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/face-recognition/results", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRecognitionCallback(t *testing.T) {
	f := &fakeReconciler{}
	w := postCallback(newRouter(f), callbackBody)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(ReplayHeader))
	assert.JSONEq(t, `{"requestId":"abc"}`, w.Body.String())

	require.Len(t, f.callbacks, 1)
	cb := f.callbacks[0]
	assert.Equal(t, int64(10), cb.ActivityScheduleID)
	require.Len(t, cb.Faces, 2)
	require.NotNil(t, cb.Faces[0].CamperID)
	assert.Equal(t, int64(7), *cb.Faces[0].CamperID)
	assert.Nil(t, cb.Faces[1].CamperID)
}

func TestRecognitionCallbackReplay(t *testing.T) {
	w := postCallback(newRouter(&fakeReconciler{replay: true}), callbackBody)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReplayHeader))
}

func TestRecognitionCallbackValidation(t *testing.T) {
	f := &fakeReconciler{}
	engine := newRouter(f)

	w := postCallback(engine, `{"activityScheduleId": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postCallback(engine, `{"requestId": "x", "activityScheduleId": 10, "recognizedFaces": [{"confidence": 1.5}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postCallback(engine, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, f.callbacks)
}

func TestRecognitionCallbackErrors(t *testing.T) {
	w := postCallback(newRouter(&fakeReconciler{err: apperr.Conflict("in flight")}), callbackBody)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postCallback(newRouter(&fakeReconciler{err: apperr.NotFound("schedule")}), callbackBody)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func photoRequest(t *testing.T, contentType string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="group.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/attendance/schedules/10/recognize", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRecognizePhoto(t *testing.T) {
	f := &fakeReconciler{}
	engine := newRouter(f)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, photoRequest(t, "image/jpeg", map[string]string{"camperGroupId": "3"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("jpeg-bytes"), f.photo)
	require.NotNil(t, f.groupID)
	assert.Equal(t, int64(3), *f.groupID)
}

func TestRecognizePhotoRejectsNonImage(t *testing.T) {
	f := &fakeReconciler{}
	w := httptest.NewRecorder()
	newRouter(f).ServeHTTP(w, photoRequest(t, "application/pdf", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.photo)
}
