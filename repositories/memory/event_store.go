package memory

import (
	"context"
	"sync"

	"github.com/glazeworks/actiongate/models"
)

// EventStore is an append-only in-memory audit event log.
type EventStore struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append appends one audit event.
func (s *EventStore) Append(ctx context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// ListRecent returns the most recent n events, newest first.
func (s *EventStore) ListRecent(ctx context.Context, n int) ([]*models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.events) {
		n = len(s.events)
	}
	out := make([]*models.AuditEvent, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Len returns the total number of appended events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
