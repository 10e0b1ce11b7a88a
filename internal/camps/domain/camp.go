package domain

import (
	"time"

	"summercamp_backend/platform/apperr"
)

// Camp is the lifecycle view of a camp.
type Camp struct {
	ID                int64
	Name              string
	RawStatus         string
	RegistrationStart *time.Time
	RegistrationEnd   *time.Time
	Start             *time.Time
	End               *time.Time
	MinParticipants   *int
}

// Status parses the persisted status.
func (c Camp) Status() (Status, error) {
	return ParseStatus(c.RawStatus)
}

// HasAllDates reports whether every milestone date is populated.
func (c Camp) HasAllDates() bool {
	return c.RegistrationStart != nil && c.RegistrationEnd != nil && c.Start != nil && c.End != nil
}

// ValidateSchedule checks the milestone invariant
// registrationStart < registrationEnd <= start < end, with registrationStart
// strictly after now.
func (c Camp) ValidateSchedule(now time.Time) error {
	if !c.HasAllDates() {
		return apperr.Validation("camp must have registration start, registration end, start and end dates")
	}
	if !c.RegistrationStart.Before(*c.RegistrationEnd) {
		return apperr.Validation("registration start must be before registration end")
	}
	if c.RegistrationEnd.After(*c.Start) {
		return apperr.Validation("registration end must not be after camp start")
	}
	if !c.Start.Before(*c.End) {
		return apperr.Validation("camp start must be before camp end")
	}
	if !c.RegistrationStart.After(now) {
		return apperr.Validation("registration start must be in the future")
	}
	return nil
}

// Overlaps reports whether the camp's [start, end] range intersects other's.
func (c Camp) Overlaps(other Camp) bool {
	if c.Start == nil || c.End == nil || other.Start == nil || other.End == nil {
		return false
	}
	return !other.Start.After(*c.End) && !other.End.Before(*c.Start)
}
