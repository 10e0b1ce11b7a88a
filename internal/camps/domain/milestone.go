package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Milestone is one of the four camp dates that trigger an automatic transition.
type Milestone string

const (
	MilestoneRegistrationStart Milestone = "RegistrationStart"
	MilestoneRegistrationEnd   Milestone = "RegistrationEnd"
	MilestoneStart             Milestone = "Start"
	MilestoneEnd               Milestone = "End"
)

// Milestones in fire order.
var Milestones = []Milestone{
	MilestoneRegistrationStart,
	MilestoneRegistrationEnd,
	MilestoneStart,
	MilestoneEnd,
}

// ParseMilestone parses a milestone name, case-insensitively.
func ParseMilestone(raw string) (Milestone, error) {
	for _, m := range Milestones {
		if strings.EqualFold(raw, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown milestone %q", raw)
}

// TargetStatus is the status a milestone moves the camp to.
func (m Milestone) TargetStatus() Status {
	switch m {
	case MilestoneRegistrationStart:
		return StatusOpenForRegistration
	case MilestoneRegistrationEnd:
		return StatusRegistrationClosed
	case MilestoneStart:
		return StatusInProgress
	case MilestoneEnd:
		return StatusCompleted
	default:
		return StatusUnknown
	}
}

// FireTime returns the camp date backing the milestone, or nil when unset.
func (m Milestone) FireTime(c Camp) *time.Time {
	switch m {
	case MilestoneRegistrationStart:
		return c.RegistrationStart
	case MilestoneRegistrationEnd:
		return c.RegistrationEnd
	case MilestoneStart:
		return c.Start
	case MilestoneEnd:
		return c.End
	default:
		return nil
	}
}

const jobNamePrefix = "Camp_"

// JobName builds the deterministic job name Camp_{campID}_{kind}.
func JobName(campID int64, kind string) string {
	return jobNamePrefix + strconv.FormatInt(campID, 10) + "_" + kind
}

// ParseJobName splits a job name back into camp id and kind.
func ParseJobName(name string) (int64, string, error) {
	rest, ok := strings.CutPrefix(name, jobNamePrefix)
	if !ok {
		return 0, "", fmt.Errorf("job name %q does not start with %q", name, jobNamePrefix)
	}
	idPart, kind, ok := strings.Cut(rest, "_")
	if !ok || kind == "" {
		return 0, "", fmt.Errorf("job name %q has no job kind", name)
	}
	campID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || campID <= 0 {
		return 0, "", fmt.Errorf("job name %q has invalid camp id", name)
	}
	return campID, kind, nil
}
