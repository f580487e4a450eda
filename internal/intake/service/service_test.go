package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	catalogservice "arsenal/internal/catalog/service"
	catalogstore "arsenal/internal/catalog/store"
	"arsenal/internal/intake/models"
	invservice "arsenal/internal/inventory/service"
	invstore "arsenal/internal/inventory/store"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/audit/publisher"
	auditmemory "arsenal/pkg/platform/audit/store/memory"
)

type IntakeServiceSuite struct {
	suite.Suite
	ctx       context.Context
	service   *Service
	inventory *invservice.Service
	audit     *auditmemory.InMemoryStore
	m1, m2    id.WeaponModelID
}

func TestIntakeServiceSuite(t *testing.T) {
	suite.Run(t, new(IntakeServiceSuite))
}

func (s *IntakeServiceSuite) SetupTest() {
	s.ctx = context.Background()
	catalog := catalogservice.New(catalogstore.NewInMemory())
	m1, err := catalog.Register(s.ctx, "M1", "Model One", "9mm", id.CategoryCivil, decimal.NewFromInt(500))
	s.Require().NoError(err)
	m2, err := catalog.Register(s.ctx, "M2", "Model Two", ".45", id.CategoryCivil, decimal.NewFromInt(700))
	s.Require().NoError(err)
	s.m1, s.m2 = m1.ID, m2.ID

	s.inventory = invservice.New(invstore.NewInMemory(), catalog)
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.inventory, catalog, WithAuditPublisher(publisher.NewPublisher(s.audit)))
}

func (s *IntakeServiceSuite) reasons(result *models.Result) map[int]string {
	out := make(map[int]string, len(result.Rejected))
	for _, r := range result.Rejected {
		out[r.Row] = r.Reason
	}
	return out
}

// =============================================================================
// Ingest
// =============================================================================

func (s *IntakeServiceSuite) TestIngest() {
	s.Run("partial batch reports each failed row", func() {
		s.SetupTest()
		result, err := s.service.Ingest(s.ctx, IngestParams{
			Rows:           []models.Row{{Serial: "SN-AAA"}, {Serial: ""}, {Serial: "SN-AAA"}},
			DefaultModelID: &s.m1,
		})
		s.Require().NoError(err)
		s.Equal(1, result.Accepted)
		s.Equal(map[int]string{
			2: models.ReasonEmptySerial,
			3: models.ReasonDuplicateSerial,
		}, s.reasons(result))

		unit, err := s.inventory.Get(s.ctx, "sn-aaa")
		s.Require().NoError(err)
		s.Equal(s.m1, unit.WeaponModelID)
		s.Contains(s.audit.Actions(), audit.EventBulkIntake.String())
	})

	s.Run("model code column wins over the default", func() {
		s.SetupTest()
		result, err := s.service.Ingest(s.ctx, IngestParams{
			Rows:           []models.Row{{Serial: "SN-1", ModelCode: "m2"}, {Serial: "SN-2"}},
			DefaultModelID: &s.m1,
		})
		s.Require().NoError(err)
		s.Equal(2, result.Accepted)

		u1, err := s.inventory.Get(s.ctx, "SN-1")
		s.Require().NoError(err)
		s.Equal(s.m2, u1.WeaponModelID)
		u2, err := s.inventory.Get(s.ctx, "SN-2")
		s.Require().NoError(err)
		s.Equal(s.m1, u2.WeaponModelID)
	})

	s.Run("unresolved models are rejected", func() {
		s.SetupTest()
		unknown := id.WeaponModelID(uuid.New())
		result, err := s.service.Ingest(s.ctx, IngestParams{
			Rows: []models.Row{
				{Serial: "SN-1"},
				{Serial: "SN-2", ModelCode: "NOPE"},
				{Serial: "SN-3", ModelCode: "M1"},
			},
			DefaultModelID: &unknown,
		})
		s.Require().NoError(err)
		s.Equal(1, result.Accepted)
		s.Equal(map[int]string{
			1: models.ReasonUnresolvedModel,
			2: models.ReasonUnresolvedModel,
		}, s.reasons(result))

		_, err = s.inventory.Get(s.ctx, "SN-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		unit, err := s.inventory.Get(s.ctx, "SN-3")
		s.Require().NoError(err)
		s.Equal(s.m1, unit.WeaponModelID)
	})

	s.Run("rows without a code and no default are unresolved", func() {
		s.SetupTest()
		result, err := s.service.Ingest(s.ctx, IngestParams{
			Rows: []models.Row{{Serial: "SN-1"}, {Serial: "SN-2", ModelCode: "M2"}},
		})
		s.Require().NoError(err)
		s.Equal(1, result.Accepted)
		s.Equal(map[int]string{1: models.ReasonUnresolvedModel}, s.reasons(result))
	})

	s.Run("serials already stored are duplicates regardless of case", func() {
		s.SetupTest()
		_, err := s.inventory.LoadUnit(s.ctx, "SN-OLD", s.m1, nil)
		s.Require().NoError(err)

		result, err := s.service.Ingest(s.ctx, IngestParams{
			Rows:           []models.Row{{Serial: " sn-old "}},
			DefaultModelID: &s.m2,
		})
		s.Require().NoError(err)
		s.Zero(result.Accepted)
		s.Equal(models.ReasonDuplicateSerial, result.Rejected[0].Reason)
	})

	s.Run("units carry the import group", func() {
		s.SetupTest()
		group := id.ImportGroupID(uuid.New())
		_, err := s.service.Ingest(s.ctx, IngestParams{
			Rows:           []models.Row{{Serial: "SN-G"}},
			DefaultModelID: &s.m1,
			ImportGroupID:  &group,
		})
		s.Require().NoError(err)
		unit, err := s.inventory.Get(s.ctx, "SN-G")
		s.Require().NoError(err)
		s.Require().NotNil(unit.ImportGroupID)
		s.Equal(group, *unit.ImportGroupID)
	})

	s.Run("empty batch", func() {
		s.SetupTest()
		result, err := s.service.Ingest(s.ctx, IngestParams{})
		s.Require().NoError(err)
		s.Zero(result.Accepted)
		s.Empty(result.Rejected)
	})
}
