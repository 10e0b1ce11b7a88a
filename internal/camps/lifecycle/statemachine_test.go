package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/platform/apperr"
	"summercamp_backend/platform/logger"
)

type memoryCampStore struct {
	mu        sync.Mutex
	camps     map[int64]*domain.Camp
	writes    int
	getErr    error
	casErr    error
	beforeCAS func(id int64) // runs before a CAS to simulate a concurrent writer
}

func newMemoryCampStore(camps ...domain.Camp) *memoryCampStore {
	s := &memoryCampStore{camps: make(map[int64]*domain.Camp)}
	for i := range camps {
		c := camps[i]
		s.camps[c.ID] = &c
	}
	return s
}

func (s *memoryCampStore) GetByID(_ context.Context, id int64) (*domain.Camp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.camps[id]
	if !ok {
		return nil, apperr.NotFound("camp not found")
	}
	cp := *c
	return &cp, nil
}

func (s *memoryCampStore) CompareAndSetStatus(_ context.Context, id int64, from, to domain.Status) (bool, error) {
	if s.beforeCAS != nil {
		hook := s.beforeCAS
		s.beforeCAS = nil
		hook(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casErr != nil {
		return false, s.casErr
	}
	c, ok := s.camps[id]
	if !ok {
		return false, nil
	}
	current, err := domain.ParseStatus(c.RawStatus)
	if err != nil || current != from {
		return false, nil
	}
	c.RawStatus = to.String()
	s.writes++
	return true, nil
}

func (s *memoryCampStore) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camps[id].RawStatus
}

func TestTransitionSafeCoversEveryPair(t *testing.T) {
	ctx := context.Background()

	for _, from := range domain.AllStatuses {
		for _, to := range domain.AllStatuses {
			store := newMemoryCampStore(domain.Camp{ID: 1, RawStatus: from.String()})
			sm := New(store, nil, logger.Nop())

			got := sm.TransitionSafe(ctx, 1, to, "test")

			switch {
			case from == to:
				if !got {
					t.Errorf("%s -> %s: self transition must succeed", from, to)
				}
				if store.writes != 0 {
					t.Errorf("%s -> %s: self transition must not write", from, to)
				}
			case domain.CanTransition(from, to):
				if !got {
					t.Errorf("%s -> %s: expected success", from, to)
				}
				if store.status(1) != to.String() {
					t.Errorf("%s -> %s: status is %s", from, to, store.status(1))
				}
			default:
				if got {
					t.Errorf("%s -> %s: expected rejection", from, to)
				}
				if store.status(1) != from.String() {
					t.Errorf("%s -> %s: status changed to %s", from, to, store.status(1))
				}
			}
		}
	}
}

func TestTransitionMissingCampReturnsFalse(t *testing.T) {
	sm := New(newMemoryCampStore(), nil, logger.Nop())

	outcome, err := sm.Transition(context.Background(), 99, domain.StatusInProgress, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", outcome)
	}
	if sm.TransitionSafe(context.Background(), 99, domain.StatusInProgress, "test") {
		t.Fatalf("expected false for missing camp")
	}
}

func TestTransitionUnparseableStatus(t *testing.T) {
	store := newMemoryCampStore(domain.Camp{ID: 3, RawStatus: "Archived"})
	sm := New(store, nil, logger.Nop())

	outcome, err := sm.Transition(context.Background(), 3, domain.StatusCompleted, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeUnknownStatus {
		t.Fatalf("expected unknown_status, got %s", outcome)
	}
}

func TestTransitionAcceptsLowercasePersistedStatus(t *testing.T) {
	store := newMemoryCampStore(domain.Camp{ID: 4, RawStatus: "inprogress"})
	sm := New(store, nil, logger.Nop())

	if !sm.TransitionSafe(context.Background(), 4, domain.StatusCompleted, "test") {
		t.Fatalf("expected transition from lowercase status to succeed")
	}
}

func TestTransitionStorageErrorsSurface(t *testing.T) {
	store := newMemoryCampStore(domain.Camp{ID: 5, RawStatus: "Published"})
	store.casErr = errors.New("connection reset")
	sm := New(store, nil, logger.Nop())

	if _, err := sm.Transition(context.Background(), 5, domain.StatusOpenForRegistration, "test"); err == nil {
		t.Fatalf("expected storage error from Transition")
	}
	if sm.TransitionSafe(context.Background(), 5, domain.StatusOpenForRegistration, "test") {
		t.Fatalf("TransitionSafe must fold storage errors into false")
	}
}

func TestTransitionLostRaceBecomesNoOp(t *testing.T) {
	store := newMemoryCampStore(domain.Camp{ID: 6, RawStatus: "OpenForRegistration"})
	store.beforeCAS = func(id int64) {
		store.mu.Lock()
		store.camps[id].RawStatus = "RegistrationClosed"
		store.mu.Unlock()
	}
	sm := New(store, nil, logger.Nop())

	outcome, err := sm.Transition(context.Background(), 6, domain.StatusRegistrationClosed, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNoOp {
		t.Fatalf("expected noop after concurrent writer, got %s", outcome)
	}
}
