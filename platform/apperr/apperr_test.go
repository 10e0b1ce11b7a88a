package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("provision camp 4: %w", Infrastructure("failed to create folder camp_4/", cause))

	assert.True(t, Is(err, KindInfrastructure))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnknown, GetKind(cause))

	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	assert.Equal(t, "failed to create folder camp_4/: dial tcp: connection refused", appErr.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("camp not found").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, Validation("bad dates").HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict("in flight").HTTPStatus())
	assert.Equal(t, http.StatusGatewayTimeout, Timeout("slow", nil).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Error{Message: "?"}).HTTPStatus())
}
