package audit

import (
	"context"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []Record{}
	for _, r := range s.records {
		if r.Actor == actor {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []Record{}
	for _, r := range s.records {
		if r.DocumentID == documentID {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
