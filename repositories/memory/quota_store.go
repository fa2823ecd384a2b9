// Package memory provides in-memory reference implementations of the store
// interfaces. They are intended for tests and single-process deployments;
// production deployments use the postgres adapters.
package memory

import (
	"context"
	"sync"
	"time"
)

// QuotaStore is a mutex-serialized in-memory call counter. It keeps a
// per-key slice of call timestamps and filters on each count.
type QuotaStore struct {
	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewQuotaStore creates an empty in-memory quota store.
func NewQuotaStore() *QuotaStore {
	return &QuotaStore{
		calls: make(map[string][]time.Time),
	}
}

func quotaKey(capabilityID, actorID string) string {
	return capabilityID + ":" + actorID
}

// RecordCall records one call at the given timestamp.
func (s *QuotaStore) RecordCall(ctx context.Context, capabilityID, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := quotaKey(capabilityID, actorID)
	s.calls[key] = append(s.calls[key], at)
	return nil
}

// CountCalls returns how many recorded calls fall within the trailing window
// ending at asOf. A call at time T counts toward any window whose end is >= T
// and whose start is <= T.
func (s *QuotaStore) CountCalls(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countLocked(capabilityID, actorID, asOf, window), nil
}

// OldestCall returns the oldest call timestamp within the trailing window.
func (s *QuotaStore) OldestCall(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := asOf.Add(-window)
	var oldest time.Time
	found := false
	for _, t := range s.calls[quotaKey(capabilityID, actorID)] {
		if t.Before(start) || t.After(asOf) {
			continue
		}
		if !found || t.Before(oldest) {
			oldest = t
			found = true
		}
	}
	return oldest, found, nil
}

// TryRecordCall atomically checks the window count against limit and records
// the call only when below it. The check and the insert run under one lock,
// so concurrent callers can never both take the last slot.
func (s *QuotaStore) TryRecordCall(ctx context.Context, capabilityID, actorID string, at time.Time, window time.Duration, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.countLocked(capabilityID, actorID, at, window)
	if count >= limit {
		return count, false, nil
	}

	key := quotaKey(capabilityID, actorID)
	s.calls[key] = append(s.calls[key], at)
	return count, true, nil
}

func (s *QuotaStore) countLocked(capabilityID, actorID string, asOf time.Time, window time.Duration) int {
	start := asOf.Add(-window)
	count := 0
	for _, t := range s.calls[quotaKey(capabilityID, actorID)] {
		if !t.Before(start) && !t.After(asOf) {
			count++
		}
	}
	return count
}
