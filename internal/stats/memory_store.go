package stats

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps statistic events in a locked slice. It backs
// single-process deployments without Postgres and the test suite.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []StatisticEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(_ context.Context, e StatisticEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryStore) CountSince(_ context.Context, assignmentID int64, kind string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.events {
		if e.AssignmentID == assignmentID && e.EventType == kind && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountByItem(_ context.Context, assignmentID int64, kind string) (map[int64]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int64)
	for _, e := range m.events {
		if e.AssignmentID == assignmentID && e.EventType == kind && e.MediaItemID != nil {
			counts[*e.MediaItemID]++
		}
	}
	return counts, nil
}
