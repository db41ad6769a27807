package audit

import (
	"context"
	"sync"
	"time"

	id "veritas/pkg/domain"
)

// Event is emitted from domain logic to capture key credential lifecycle
// actions. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp    time.Time
	CredentialID id.CredentialID
	TenantID     id.TenantID
	Subject      string
	Action       string
	Decision     string
	Reason       string
	RequestID    string
}

// Action values for the credential lifecycle.
const (
	ActionCredentialRevoked  = "credential_revoked"
	ActionStatusRegistered   = "status_registered"
	ActionBatchCreated       = "anchor_batch_created"
	ActionBatchAnchored      = "anchor_batch_anchored"
	ActionBatchDeadLettered  = "anchor_batch_dead_lettered"
	ActionBatchReplayed      = "anchor_batch_replayed"
	ActionProofVerified      = "proof_verified"
	ActionProofReplayBlocked = "proof_replay_blocked"
)

// Sink persists audit events. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// InMemorySink collects events in memory for tests and local runs.
type InMemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemorySink constructs an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Append records the event.
func (s *InMemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of all recorded events.
func (s *InMemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
