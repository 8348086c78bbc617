// Package state persists ResourceRecords keyed by logical name.
package state

import (
	"context"
	"sort"
	"sync"

	"github.com/eleven-am/netform/internal/domain"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.ResourceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.ResourceRecord)}
}

func (s *MemoryStore) Get(_ context.Context, logicalName string) (domain.ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[logicalName]
	if !ok {
		return domain.ResourceRecord{}, domain.ErrNotFound
	}
	rec.Attributes = rec.Attributes.Clone()
	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, record domain.ResourceRecord) error {
	record.Attributes = record.Attributes.Clone()
	s.mu.Lock()
	s.records[record.LogicalName] = record
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, logicalName string) error {
	s.mu.Lock()
	delete(s.records, logicalName)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.records), nil
}

func sortedRecords(m map[string]domain.ResourceRecord) []domain.ResourceRecord {
	out := make([]domain.ResourceRecord, 0, len(m))
	for _, rec := range m {
		rec.Attributes = rec.Attributes.Clone()
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalName < out[j].LogicalName })
	return out
}
