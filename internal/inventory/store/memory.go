package store

import (
	"context"
	"sort"
	"sync"

	"arsenal/internal/inventory/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

// InMemory keeps serial units keyed by normalized serial. Execute runs the
// read-validate-write under the write lock, which is the compare-and-swap.
type InMemory struct {
	mu    sync.RWMutex
	units map[id.SerialNumber]*models.SerialUnit
}

func NewInMemory() *InMemory {
	return &InMemory{units: make(map[id.SerialNumber]*models.SerialUnit)}
}

func (s *InMemory) Create(_ context.Context, unit *models.SerialUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unit.Serial]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.units[unit.Serial] = clone(unit)
	return nil
}

func (s *InMemory) FindBySerial(_ context.Context, serial id.SerialNumber) (*models.SerialUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[serial]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(u), nil
}

func (s *InMemory) Exists(_ context.Context, serial id.SerialNumber) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.units[serial]
	return ok, nil
}

func (s *InMemory) Execute(_ context.Context, serial id.SerialNumber, validate func(*models.SerialUnit) error, mutate func(*models.SerialUnit)) (*models.SerialUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.units[serial]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.units[serial] = working
	return clone(working), nil
}

func (s *InMemory) ListAvailable(_ context.Context, modelID id.WeaponModelID, groupID *id.ImportGroupID) ([]*models.SerialUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SerialUnit
	for _, u := range s.units {
		if u.State != models.StateAvailable || u.WeaponModelID != modelID {
			continue
		}
		if groupID != nil && (u.ImportGroupID == nil || *u.ImportGroupID != *groupID) {
			continue
		}
		out = append(out, clone(u))
	}
	sortBySerial(out)
	return out, nil
}

func (s *InMemory) ListByReservation(_ context.Context, reservationID id.ReservationID) ([]*models.SerialUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SerialUnit
	for _, u := range s.units {
		if u.ReservationID != nil && *u.ReservationID == reservationID {
			out = append(out, clone(u))
		}
	}
	sortBySerial(out)
	return out, nil
}

func (s *InMemory) StatsByModel(_ context.Context) (map[id.WeaponModelID]models.StateCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.WeaponModelID]models.StateCounts)
	for _, u := range s.units {
		c := out[u.WeaponModelID]
		c.Add(u.State)
		out[u.WeaponModelID] = c
	}
	return out, nil
}

func clone(u *models.SerialUnit) *models.SerialUnit {
	cp := *u
	if u.ImportGroupID != nil {
		g := *u.ImportGroupID
		cp.ImportGroupID = &g
	}
	if u.ReservationID != nil {
		r := *u.ReservationID
		cp.ReservationID = &r
	}
	if u.AssignedBy != nil {
		a := *u.AssignedBy
		cp.AssignedBy = &a
	}
	if u.BoundAt != nil {
		t := *u.BoundAt
		cp.BoundAt = &t
	}
	if u.SoldAt != nil {
		t := *u.SoldAt
		cp.SoldAt = &t
	}
	return &cp
}

func sortBySerial(list []*models.SerialUnit) {
	sort.Slice(list, func(i, j int) bool { return list[i].Serial < list[j].Serial })
}
