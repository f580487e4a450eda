package store

import (
	"context"
	"sort"
	"sync"

	"arsenal/internal/catalog/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

// InMemory holds weapon models and client categories.
type InMemory struct {
	mu         sync.RWMutex
	models     map[id.WeaponModelID]*models.WeaponModel
	byCode     map[string]id.WeaponModelID
	categories map[id.ClientID]id.QuotaCategory
}

func NewInMemory() *InMemory {
	return &InMemory{
		models:     make(map[id.WeaponModelID]*models.WeaponModel),
		byCode:     make(map[string]id.WeaponModelID),
		categories: make(map[id.ClientID]id.QuotaCategory),
	}
}

func (s *InMemory) Create(_ context.Context, m *models.WeaponModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[m.Code]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.models[m.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *m
	s.models[m.ID] = &cp
	s.byCode[m.Code] = m.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, modelID id.WeaponModelID) (*models.WeaponModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[modelID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.WeaponModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	modelID, ok := s.byCode[models.NormalizeCode(code)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.models[modelID]
	return &cp, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.WeaponModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.WeaponModel, 0, len(s.models))
	for _, m := range s.models {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemory) SetClientCategory(_ context.Context, clientID id.ClientID, category id.QuotaCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[clientID] = category
	return nil
}

func (s *InMemory) ClientCategory(_ context.Context, clientID id.ClientID) (id.QuotaCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[clientID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return c, nil
}
