// Package apperr carries the error kinds services return. The HTTP layer maps
// a kind to a status code, and the job worker uses it to decide whether a
// failed task is worth retrying.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: camp, schedule, camper or job does not exist.
	KindNotFound
	// KindValidation: malformed input such as unordered milestone dates.
	KindValidation
	// KindConflict: the request collides with current state, e.g. a callback still in flight.
	KindConflict
	// KindInfrastructure: object store, queue, database or network failure.
	KindInfrastructure
	// KindTimeout: a downstream service did not answer in time.
	KindTimeout
	KindInternal
)

var statusByKind = map[Kind]int{
	KindNotFound:       http.StatusNotFound,
	KindValidation:     http.StatusBadRequest,
	KindConflict:       http.StatusConflict,
	KindInfrastructure: http.StatusBadGateway,
	KindTimeout:        http.StatusGatewayTimeout,
	KindInternal:       http.StatusInternalServerError,
}

// Error is a message safe to show to API callers plus the cause, which is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus defaults to 500 for kinds without a mapping.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NotFound(message string) *Error   { return &Error{Kind: KindNotFound, Message: message} }
func Validation(message string) *Error { return &Error{Kind: KindValidation, Message: message} }
func Conflict(message string) *Error   { return &Error{Kind: KindConflict, Message: message} }
func Internal(message string) *Error   { return &Error{Kind: KindInternal, Message: message} }

func Infrastructure(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}

func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// GetKind returns the kind of the first *Error in err's chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool { return GetKind(err) == kind }
