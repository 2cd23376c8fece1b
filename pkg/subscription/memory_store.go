package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// NewMemoryStore returns a store seeded with the given records.
func NewMemoryStore(seed ...*Record) *MemoryStore {
	s := &MemoryStore{records: make(map[uuid.UUID]*Record, len(seed))}
	for _, rec := range seed {
		if rec != nil {
			s.records[rec.UserID] = rec.Clone()
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetByCustomerID(_ context.Context, customerID string) (*Record, error) {
	if customerID == "" {
		return nil, ErrRecordNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.CustomerID == customerID {
			return rec.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.UserID == uuid.Nil {
		return ErrMissingUserReference
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec.Clone()
	return nil
}

// Delete removes the record for userID if present.
func (s *MemoryStore) Delete(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
}
