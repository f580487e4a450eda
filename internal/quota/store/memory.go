package store

import (
	"context"
	"sync"

	"arsenal/internal/quota/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.Mutex
	ledgers map[id.ImportGroupID]*models.Ledger
}

func NewInMemory() *InMemory {
	return &InMemory{ledgers: make(map[id.ImportGroupID]*models.Ledger)}
}

func (s *InMemory) Create(_ context.Context, ledger *models.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[ledger.ImportGroupID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.ledgers[ledger.ImportGroupID] = ledger.Clone()
	return nil
}

func (s *InMemory) FindByGroup(_ context.Context, groupID id.ImportGroupID) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l.Clone(), nil
}

// Execute applies fn to a working copy and commits it only when fn succeeds.
func (s *InMemory) Execute(_ context.Context, groupID id.ImportGroupID, fn func(*models.Ledger) error) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.ledgers[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	s.ledgers[groupID] = working
	return working.Clone(), nil
}
