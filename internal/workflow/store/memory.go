package store

import (
	"context"
	"sort"
	"sync"

	"arsenal/internal/workflow/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.RWMutex
	groups map[id.ImportGroupID]*models.ImportGroup
}

func NewInMemory() *InMemory {
	return &InMemory{groups: make(map[id.ImportGroupID]*models.ImportGroup)}
}

// Create enforces one active group per license, matching the partial unique
// index in postgres.
func (s *InMemory) Create(_ context.Context, g *models.ImportGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.groups {
		if existing.LicenseID == g.LicenseID && !existing.Stage.IsTerminal() {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.groups[g.ID] = g.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, groupID id.ImportGroupID) (*models.ImportGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *InMemory) Execute(_ context.Context, groupID id.ImportGroupID, fn func(*models.ImportGroup) error) (*models.ImportGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.groups[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.groups[groupID] = working
	return working.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.ImportGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ImportGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
