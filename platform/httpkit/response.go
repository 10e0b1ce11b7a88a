package httpkit

import (
	"errors"
	"net/http"

	"summercamp_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload interface{}) { c.JSON(http.StatusOK, payload) }

func JSON(c *gin.Context, status int, payload interface{}) { c.JSON(status, payload) }

// HandleError writes err and reports whether there was one. Typed apperr
// errors keep their status and message; anything else becomes a bare 500 so
// driver and network details never reach the client.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		Error(c, http.StatusInternalServerError, "internal error", nil)
		return true
	}
	Error(c, appErr.HTTPStatus(), appErr.Message, appErr.Details)
	return true
}
