package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

// MockStorage is an in-memory Storage for handler tests. Sessions are
// stored as JSON snapshots, matching Redis copy semantics: a loaded
// session never aliases a previously saved one.
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID][]byte
	scenarios map[string]*scenario.Scenario

	PingError error
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions:  make(map[uuid.UUID][]byte),
		scenarios: make(map[string]*scenario.Scenario),
	}
}

func (m *MockStorage) SaveSession(_ context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = data
	return nil
}

func (m *MockStorage) LoadSession(_ context.Context, id uuid.UUID) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (m *MockStorage) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// AddScenario registers a case document for lookup by id.
func (m *MockStorage) AddScenario(s *scenario.Scenario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = s
}

func (m *MockStorage) GetScenario(_ context.Context, id string) (*scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	return s, nil
}

func (m *MockStorage) ListScenarios(_ context.Context) ([]scenario.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summaries := make([]scenario.Summary, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		summaries = append(summaries, s.Summary())
	}
	return summaries, nil
}

func (m *MockStorage) Ping(_ context.Context) error {
	return m.PingError
}

func (m *MockStorage) Close() error {
	return nil
}
