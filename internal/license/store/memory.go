package store

import (
	"context"
	"sort"
	"sync"

	"arsenal/internal/license/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	licenses map[id.LicenseID]*models.License
}

func NewInMemory() *InMemory {
	return &InMemory{licenses: make(map[id.LicenseID]*models.License)}
}

func (s *InMemory) Create(_ context.Context, l *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.licenses {
		if existing.ID == l.ID || existing.Number == l.Number {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.licenses[l.ID] = clone(l)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, licenseID id.LicenseID) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.licenses[licenseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(l), nil
}

func (s *InMemory) Execute(_ context.Context, licenseID id.LicenseID, validate func(*models.License) error, mutate func(*models.License)) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.licenses[licenseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.licenses[licenseID] = working
	return clone(working), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.License, 0, len(s.licenses))
	for _, l := range s.licenses {
		out = append(out, clone(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func clone(l *models.License) *models.License {
	cp := *l
	if l.ImportGroupID != nil {
		g := *l.ImportGroupID
		cp.ImportGroupID = &g
	}
	return &cp
}
