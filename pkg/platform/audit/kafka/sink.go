// Package kafka provides a Kafka-backed audit sink so lifecycle events can be
// consumed by downstream compliance tooling.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	audit "veritas/pkg/platform/audit"
)

// Producer is the subset of the platform Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Sink publishes audit events to a Kafka topic as JSON records keyed by
// credential ID so per-credential ordering is preserved within a partition.
type Sink struct {
	producer Producer
	topic    string
}

// NewSink constructs a Kafka audit sink writing to the given topic.
func NewSink(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

type record struct {
	Timestamp    time.Time `json:"timestamp"`
	CredentialID string    `json:"credential_id,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Action       string    `json:"action"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}

// Append publishes the event.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(record{
		Timestamp:    event.Timestamp,
		CredentialID: event.CredentialID.String(),
		TenantID:     event.TenantID.String(),
		Subject:      event.Subject,
		Action:       event.Action,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := []byte(event.CredentialID.String())
	headers := map[string]string{"action": event.Action}
	if err := s.producer.Produce(ctx, s.topic, key, value, headers); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
