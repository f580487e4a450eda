package documents

import (
	"context"
	"sync"

	id "arsenal/pkg/domain"
)

// InMemory stands in for the document service in development. Operators flip
// a group's flag through the handler.
type InMemory struct {
	mu      sync.RWMutex
	present map[id.ImportGroupID]bool
}

func NewInMemory() *InMemory {
	return &InMemory{present: make(map[id.ImportGroupID]bool)}
}

func (m *InMemory) SetPresent(_ context.Context, groupID id.ImportGroupID, present bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present[groupID] = present
	return nil
}

func (m *InMemory) RequiredDocumentsPresent(_ context.Context, groupID id.ImportGroupID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.present[groupID], nil
}
