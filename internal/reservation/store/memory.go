package store

import (
	"context"
	"sort"
	"sync"

	"arsenal/internal/reservation/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

// InMemory holds reservations and memberships. Execute runs validate and
// mutate under the write lock.
type InMemory struct {
	mu           sync.RWMutex
	reservations map[id.ReservationID]*models.Reservation
	memberships  map[id.MembershipID]*models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{
		reservations: make(map[id.ReservationID]*models.Reservation),
		memberships:  make(map[id.MembershipID]*models.Membership),
	}
}

func (s *InMemory) Create(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	cp := *r
	s.reservations[r.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, resID id.ReservationID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[resID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) Execute(_ context.Context, resID id.ReservationID, validate func(*models.Reservation) error, mutate func(*models.Reservation)) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.reservations[resID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := *current
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.reservations[resID] = &working
	out := working
	return &out, nil
}

func (s *InMemory) ListByGroup(_ context.Context, groupID id.ImportGroupID) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		if r.ImportGroupID == groupID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CountOutstanding(_ context.Context, groupID id.ImportGroupID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reservations {
		if r.ImportGroupID == groupID && r.IsOutstanding() {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CreateMembership(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.ImportGroupID == m.ImportGroupID && existing.ClientID == m.ClientID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *m
	s.memberships[m.ID] = &cp
	return nil
}

func (s *InMemory) FindMembership(_ context.Context, mID id.MembershipID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[mID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *InMemory) ExecuteMembership(_ context.Context, mID id.MembershipID, validate func(*models.Membership) error, mutate func(*models.Membership)) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.memberships[mID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := *current
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.memberships[mID] = &working
	out := working
	return &out, nil
}

func (s *InMemory) ListMemberships(_ context.Context, groupID id.ImportGroupID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Membership
	for _, m := range s.memberships {
		if m.ImportGroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) CountOutstandingMemberships(_ context.Context, groupID id.ImportGroupID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.memberships {
		if m.ImportGroupID == groupID && !m.State.IsTerminal() {
			n++
		}
	}
	return n, nil
}
