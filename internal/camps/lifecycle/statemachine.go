// Package lifecycle applies camp status transitions. Transitions never fail
// on an invalid or duplicate trigger: they report an Outcome instead, so a
// scheduler firing a stale job degrades to a no-op.
package lifecycle

import (
	"context"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/internal/events"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
)

// Outcome describes what a transition attempt did.
type Outcome int

const (
	// OutcomeApplied means the new status was persisted.
	OutcomeApplied Outcome = iota + 1
	// OutcomeNoOp means the camp already had the target status.
	OutcomeNoOp
	// OutcomeNotFound means the camp does not exist.
	OutcomeNotFound
	// OutcomeUnknownStatus means the persisted status could not be parsed.
	OutcomeUnknownStatus
	// OutcomeRejected means the edge is not in the transition table.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnknownStatus:
		return "unknown_status"
	case OutcomeRejected:
		return "rejected"
	default:
		return "invalid"
	}
}

// OK reports whether the camp is in the target status after the attempt.
func (o Outcome) OK() bool {
	return o == OutcomeApplied || o == OutcomeNoOp
}

// CampStore is the persistence the state machine needs.
type CampStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Camp, error)
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error)
}

// StateMachine validates and applies camp status transitions.
type StateMachine struct {
	store CampStore
	bus   events.Bus
	log   *logger.Logger
}

// New creates a state machine. bus may be nil.
func New(store CampStore, bus events.Bus, log *logger.Logger) *StateMachine {
	return &StateMachine{store: store, bus: bus, log: log}
}

// maxCASAttempts bounds how often a lost compare-and-set is re-evaluated.
const maxCASAttempts = 2

// Transition moves the camp to target when the edge is allowed. Only
// storage failures are returned as errors.
func (m *StateMachine) Transition(ctx context.Context, campID int64, target domain.Status, source string) (Outcome, error) {
	log := m.log.WithCamp(campID).With("target", target.String(), "source", source)

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		camp, err := m.store.GetByID(ctx, campID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				log.Warn("camp transition skipped: camp not found")
				return OutcomeNotFound, nil
			}
			return 0, err
		}

		current, err := camp.Status()
		if err != nil {
			log.Warn("camp transition skipped: unparseable status", "status", camp.RawStatus)
			return OutcomeUnknownStatus, nil
		}

		if current == target {
			log.Debug("camp already in target status")
			return OutcomeNoOp, nil
		}

		if !domain.CanTransition(current, target) {
			log.Warn("camp transition rejected", "current", current.String())
			return OutcomeRejected, nil
		}

		changed, err := m.store.CompareAndSetStatus(ctx, campID, current, target)
		if err != nil {
			return 0, err
		}
		if changed {
			log.Info("camp status changed", "from", current.String())
			m.publish(ctx, campID, current, target, source)
			return OutcomeApplied, nil
		}

		log.Info("camp status changed concurrently, re-evaluating", "attempt", attempt)
	}

	return OutcomeRejected, nil
}

// TransitionSafe is Transition with errors folded into false. It returns true
// when the camp ends up in the target status.
func (m *StateMachine) TransitionSafe(ctx context.Context, campID int64, target domain.Status, source string) bool {
	outcome, err := m.Transition(ctx, campID, target, source)
	if err != nil {
		m.log.WithCamp(campID).Error("camp transition failed", "target", target.String(), "source", source, "error", err)
		return false
	}
	return outcome.OK()
}

func (m *StateMachine) publish(ctx context.Context, campID int64, from, to domain.Status, source string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.CampStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		CampID:    campID,
		From:      from.String(),
		To:        to.String(),
		Source:    source,
	})
}
