package session

import (
	"context"
	"sync"
)

// MemoryStore keeps view sessions in locked maps. It backs single-process
// deployments without Redis and the test suite.
type MemoryStore struct {
	mu           sync.RWMutex
	byAssignment map[int64]ViewSession
	byCredential map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byAssignment: make(map[int64]ViewSession),
		byCredential: make(map[string]int64),
	}
}

func (m *MemoryStore) GetByAssignment(_ context.Context, assignmentID int64) (*ViewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byAssignment[assignmentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) GetByCredential(_ context.Context, credential string) (*ViewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	assignmentID, ok := m.byCredential[credential]
	if !ok {
		return nil, nil
	}
	s := m.byAssignment[assignmentID]
	return &s, nil
}

func (m *MemoryStore) Upsert(_ context.Context, s ViewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byAssignment[s.AssignmentID]; ok {
		delete(m.byCredential, existing.Credential)
	}
	m.byAssignment[s.AssignmentID] = s
	m.byCredential[s.Credential] = s.AssignmentID
	return nil
}

func (m *MemoryStore) DeleteByCredential(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignmentID, ok := m.byCredential[credential]
	if !ok {
		return nil
	}
	delete(m.byCredential, credential)
	delete(m.byAssignment, assignmentID)
	return nil
}
