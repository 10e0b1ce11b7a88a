package domain

// allowedTransitions is the complete automatic transition table. Statuses
// without an entry (Draft, Completed, Canceled) have no outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusPublished:           {StatusOpenForRegistration},
	StatusOpenForRegistration: {StatusRegistrationClosed, StatusUnderEnrolled},
	StatusRegistrationClosed:  {StatusInProgress, StatusUnderEnrolled},
	StatusUnderEnrolled:       {StatusOpenForRegistration, StatusInProgress},
	StatusInProgress:          {StatusCompleted},
}

// CanTransition reports whether from -> to is an allowed edge.
// A self transition is not an edge; callers treat it as a no-op.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
