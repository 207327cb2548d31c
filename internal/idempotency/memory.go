package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process store. It honors the same
// single-key atomicity and expiry contract as DynamoStore and backs tests
// and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// MemoryTTL overrides the default record lifetime.
func MemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// MemoryClock overrides the time source.
func MemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(options ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]Record),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *MemoryStore) Claim(_ context.Context, eventID, orderID string, createdAt time.Time) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[eventID]; ok && rec.ExpiresAt > now.Unix() {
		return Duplicate, nil
	}
	s.records[eventID] = Record{
		EventID:   eventID,
		OrderID:   orderID,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	return New, nil
}

// Len reports the number of records currently held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
