package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore keeps records in a map for the lifetime of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	trials      map[string]TrialRecord
}

// NewMemoryStore returns an empty store; call Init before use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init resets the store to empty.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.trials = make(map[string]TrialRecord)
	return nil
}

// SaveTrial inserts or replaces the record with the same ID.
func (s *MemoryStore) SaveTrial(_ context.Context, record TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if record.ID == "" {
		return errors.New("trial id is required")
	}

	s.trials[record.ID] = record
	return nil
}

// GetTrial returns the record with the given ID and whether it exists.
func (s *MemoryStore) GetTrial(_ context.Context, id string) (TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.trials[id]
	return record, ok, nil
}

// ListTrials returns the records of target, or all records when target is
// empty, oldest first.
func (s *MemoryStore) ListTrials(_ context.Context, target string) ([]TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TrialRecord, 0, len(s.trials))
	for _, record := range s.trials {
		if target == "" || record.Target == target {
			out = append(out, record)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
