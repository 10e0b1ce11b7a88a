// Package domain provides the core business rules for the camp lifecycle:
// the closed set of camp statuses, the allowed transitions between them and
// the milestone dates that drive automatic transitions.
package domain

import (
	"fmt"
	"strings"
)

// Status is a camp lifecycle status. The zero value is not a valid status.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusDraft
	StatusPublished
	StatusOpenForRegistration
	StatusRegistrationClosed
	StatusUnderEnrolled
	StatusInProgress
	StatusCompleted
	StatusCanceled
)

var statusNames = [...]string{
	StatusUnknown:             "Unknown",
	StatusDraft:               "Draft",
	StatusPublished:           "Published",
	StatusOpenForRegistration: "OpenForRegistration",
	StatusRegistrationClosed:  "RegistrationClosed",
	StatusUnderEnrolled:       "UnderEnrolled",
	StatusInProgress:          "InProgress",
	StatusCompleted:           "Completed",
	StatusCanceled:            "Canceled",
}

// AllStatuses lists every valid status.
var AllStatuses = []Status{
	StatusDraft,
	StatusPublished,
	StatusOpenForRegistration,
	StatusRegistrationClosed,
	StatusUnderEnrolled,
	StatusInProgress,
	StatusCompleted,
	StatusCanceled,
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s > StatusUnknown && s <= StatusCanceled
}

// ParseStatus parses a persisted status value, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range AllStatuses {
		if strings.EqualFold(trimmed, s.String()) {
			return s, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown camp status %q", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid camp status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
