package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"arsenal/internal/catalog/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/sentinel"
)

type CatalogStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestCatalogStoreSuite(t *testing.T) {
	suite.Run(t, new(CatalogStoreSuite))
}

func (s *CatalogStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *CatalogStoreSuite) newModel(code string) *models.WeaponModel {
	m, err := models.NewWeaponModel(id.WeaponModelID(uuid.New()), code, "Model "+code, "9mm", id.CategoryCivil, decimal.NewFromInt(100), time.Now())
	s.Require().NoError(err)
	return m
}

func (s *CatalogStoreSuite) TestCreateAndFind() {
	m := s.newModel("m1")
	s.Require().NoError(s.store.Create(s.ctx, m))

	s.Run("codes are unique", func() {
		s.ErrorIs(s.store.Create(s.ctx, s.newModel("M1")), sentinel.ErrAlreadyUsed)
	})

	s.Run("returned values are copies", func() {
		found, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		found.Name = "mutated"
		again, _ := s.store.FindByID(s.ctx, m.ID)
		s.Equal("Model m1", again.Name)
	})

	s.Run("list is ordered by code", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newModel("A9")))
		list, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal("A9", list[0].Code)
	})
}
