// Package idempotency suppresses duplicate processing of externally
// redelivered requests. A request id is claimed atomically before work starts
// and replaced with the cached result once the work succeeded.
package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// State is the result of claiming a request id.
type State int

const (
	// StateAcquired means the caller owns the request and must do the work.
	StateAcquired State = iota + 1
	// StateInProgress means another delivery holds the claim right now.
	StateInProgress
	// StateDone means the request was processed; Claim.Result holds the result.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAcquired:
		return "acquired"
	case StateInProgress:
		return "in_progress"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Claim is returned by Begin.
type Claim struct {
	State  State
	Result []byte
}

// DefaultClaimTTL bounds how long an in-progress claim blocks redeliveries
// when the owner dies without clearing it.
const DefaultClaimTTL = 2 * time.Minute

// DefaultResultTTL applies when MarkProcessed gets a non-positive ttl.
const DefaultResultTTL = 24 * time.Hour

func resultTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultResultTTL
	}
	return ttl
}

// Cache is a short-TTL request id -> result store.
type Cache interface {
	// Begin atomically claims id if it is unknown.
	Begin(ctx context.Context, id string, claimTTL time.Duration) (Claim, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string, result []byte, ttl time.Duration) error
	GetCachedResult(ctx context.Context, id string) ([]byte, bool, error)
	Clear(ctx context.Context, id string) error
}

const (
	entryPending = "pending"
	entryDone    = "done"
)

type entry struct {
	State  string `json:"state"`
	Result []byte `json:"result,omitempty"`
}

func encodeEntry(e entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(raw []byte) (entry, error) {
	var e entry
	err := json.Unmarshal(raw, &e)
	return e, err
}

func claimFor(e entry) Claim {
	if e.State == entryDone {
		return Claim{State: StateDone, Result: e.Result}
	}
	return Claim{State: StateInProgress}
}
