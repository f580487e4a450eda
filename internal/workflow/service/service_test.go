package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks DocumentGroupService,LicenseDirectory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	catalogservice "arsenal/internal/catalog/service"
	catalogstore "arsenal/internal/catalog/store"
	invmodels "arsenal/internal/inventory/models"
	invservice "arsenal/internal/inventory/service"
	invstore "arsenal/internal/inventory/store"
	"arsenal/internal/platform/lock"
	quotamodels "arsenal/internal/quota/models"
	quotaservice "arsenal/internal/quota/service"
	quotastore "arsenal/internal/quota/store"
	resmodels "arsenal/internal/reservation/models"
	resservice "arsenal/internal/reservation/service"
	resstore "arsenal/internal/reservation/store"
	"arsenal/internal/workflow/models"
	"arsenal/internal/workflow/service/mocks"
	"arsenal/internal/workflow/store"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/audit/publisher"
	auditmemory "arsenal/pkg/platform/audit/store/memory"
	"arsenal/pkg/requestcontext"
)

type WorkflowServiceSuite struct {
	suite.Suite
	ctx          context.Context
	ctrl         *gomock.Controller
	documents    *mocks.MockDocumentGroupService
	licenses     *mocks.MockLicenseDirectory
	quota        *quotaservice.Service
	inventory    *invservice.Service
	reservations *resservice.Service
	audit        *auditmemory.InMemoryStore
	service      *Service
	license      id.LicenseID
	client       id.ClientID
	model        id.WeaponModelID
	actor        id.UserID
}

func TestWorkflowServiceSuite(t *testing.T) {
	suite.Run(t, new(WorkflowServiceSuite))
}

func (s *WorkflowServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.documents = mocks.NewMockDocumentGroupService(s.ctrl)
	s.licenses = mocks.NewMockLicenseDirectory(s.ctrl)

	s.actor = id.UserID(uuid.New())
	s.ctx = requestcontext.WithActorID(context.Background(), s.actor)

	catalog := catalogservice.New(catalogstore.NewInMemory())
	m, err := catalog.Register(s.ctx, "M1", "Model One", "9mm", id.CategoryCivil, decimal.NewFromInt(500))
	s.Require().NoError(err)
	s.model = m.ID
	s.client = id.ClientID(uuid.New())
	s.Require().NoError(catalog.SetClientCategory(s.ctx, s.client, id.CategoryCivil))

	locker := lock.NewKeyed()
	s.quota = quotaservice.New(quotastore.NewInMemory(), quotaservice.WithLocker(locker))
	s.inventory = invservice.New(invstore.NewInMemory(), catalog)
	rs := resstore.NewInMemory()
	s.reservations = resservice.New(rs, rs, s.quota, s.inventory, catalog, catalog, resservice.WithLocker(locker))
	s.inventory.SetReservations(s.reservations)

	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(store.NewInMemory(), s.documents, s.licenses, s.quota, s.reservations,
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithLocker(locker))
	s.reservations.SetGroups(s.service)
	s.license = id.LicenseID(uuid.New())
}

func (s *WorkflowServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *WorkflowServiceSuite) createGroup() *models.ImportGroup {
	s.licenses.EXPECT().Bind(gomock.Any(), s.license, gomock.Any()).Return(nil)
	g, err := s.service.CreateGroup(s.ctx, CreateGroupParams{
		LicenseID: s.license,
		Type:      quotamodels.GroupTypeQuota,
		Limits: quotamodels.Limits{
			Total:      10,
			Categories: map[id.QuotaCategory]int{id.CategoryCivil: 5},
		},
	})
	s.Require().NoError(err)
	return g
}

func (s *WorkflowServiceSuite) advance(groupID id.ImportGroupID, target models.Stage) {
	_, err := s.service.Advance(s.ctx, groupID, target, s.actor)
	s.Require().NoError(err)
}

// advanceTo walks the pipeline from the current stage, satisfying each gate.
func (s *WorkflowServiceSuite) advanceTo(groupID id.ImportGroupID, target models.Stage) {
	for {
		g, err := s.service.Get(s.ctx, groupID)
		s.Require().NoError(err)
		if g.Stage == target {
			return
		}
		next, ok := g.Stage.Next()
		s.Require().True(ok)
		switch next {
		case models.StageOperationsProcessing:
			s.documents.EXPECT().RequiredDocumentsPresent(gomock.Any(), groupID).Return(true, nil)
		case models.StageCustomsAgentNotified:
			_, err := s.service.RecordArrivalEstimate(s.ctx, groupID, time.Now().AddDate(0, 0, 30))
			s.Require().NoError(err)
		case models.StageCompleted:
			s.licenses.EXPECT().Free(gomock.Any(), s.license, groupID).Return(nil)
		}
		s.advance(groupID, next)
	}
}

func (s *WorkflowServiceSuite) reserve(groupID id.ImportGroupID, qty int) *resmodels.Reservation {
	r, err := s.reservations.Create(s.ctx, resservice.CreateParams{
		ClientID:      s.client,
		WeaponModelID: s.model,
		ImportGroupID: groupID,
		Quantity:      qty,
	})
	s.Require().NoError(err)
	return r
}

// =============================================================================
// CreateGroup
// =============================================================================

func (s *WorkflowServiceSuite) TestCreateGroup() {
	s.Run("starts at PREPARING with quota configured", func() {
		s.SetupTest()
		g := s.createGroup()
		s.Equal(models.StagePreparing, g.Stage)
		s.Len(g.History, 1)

		remaining, err := s.quota.Remaining(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(10, remaining.Total)
		s.Contains(s.audit.Actions(), audit.EventGroupCreated.String())
	})

	s.Run("occupied license is a conflict", func() {
		s.SetupTest()
		s.licenses.EXPECT().Bind(gomock.Any(), s.license, gomock.Any()).
			Return(dErrors.WithReason(dErrors.CodeConflict, "license_occupied", "license is occupied"))

		_, err := s.service.CreateGroup(s.ctx, CreateGroupParams{
			LicenseID: s.license,
			Type:      quotamodels.GroupTypeQuota,
			Limits:    quotamodels.Limits{Total: 1},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		list, err := s.service.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(list)
	})

	s.Run("invalid limits never touch the license", func() {
		s.SetupTest()
		_, err := s.service.CreateGroup(s.ctx, CreateGroupParams{
			LicenseID: s.license,
			Type:      quotamodels.GroupTypeQuota,
			Limits:    quotamodels.Limits{Total: -1},
		})
		s.Error(err)
	})

	s.Run("license is freed when the quota cannot be configured", func() {
		s.SetupTest()
		s.licenses.EXPECT().Bind(gomock.Any(), s.license, gomock.Any()).Return(nil)
		s.licenses.EXPECT().Free(gomock.Any(), s.license, gomock.Any()).Return(nil)

		failing := New(store.NewInMemory(), s.documents, s.licenses, failingQuota{}, s.reservations)
		_, err := failing.CreateGroup(s.ctx, CreateGroupParams{
			LicenseID: s.license,
			Type:      quotamodels.GroupTypeQuota,
			Limits:    quotamodels.Limits{Total: 1},
		})
		s.Error(err)
	})
}

type failingQuota struct{}

func (failingQuota) Configure(context.Context, id.ImportGroupID, quotamodels.GroupType, quotamodels.Limits) (*quotamodels.Ledger, error) {
	return nil, errors.New("ledger unavailable")
}

// =============================================================================
// Advance
// =============================================================================

func (s *WorkflowServiceSuite) TestAdvance() {
	s.Run("skipping a stage is rejected", func() {
		s.SetupTest()
		g := s.createGroup()
		s.advance(g.ID, models.StageClientAssignment)

		_, err := s.service.Advance(s.ctx, g.ID, models.StageOperationsProcessing, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		got, err := s.service.Get(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(models.StageClientAssignment, got.Stage)

		s.advance(g.ID, models.StageFactoryProformaRequested)
		s.documents.EXPECT().RequiredDocumentsPresent(gomock.Any(), g.ID).Return(true, nil)
		s.advance(g.ID, models.StageOperationsProcessing)

		got, err = s.service.Get(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(models.StageOperationsProcessing, got.Stage)
		s.Len(got.History, 4)
	})

	s.Run("missing documents block operations processing", func() {
		s.SetupTest()
		g := s.createGroup()
		s.advanceTo(g.ID, models.StageFactoryProformaRequested)
		s.documents.EXPECT().RequiredDocumentsPresent(gomock.Any(), g.ID).Return(false, nil)

		_, err := s.service.Advance(s.ctx, g.ID, models.StageOperationsProcessing, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeStageBlocked))
		s.Equal(PreconditionRequiredDocuments, dErrors.ReasonOf(err))
		s.Contains(s.audit.Actions(), audit.EventStageBlocked.String())
	})

	s.Run("document service failure is internal", func() {
		s.SetupTest()
		g := s.createGroup()
		s.advanceTo(g.ID, models.StageFactoryProformaRequested)
		s.documents.EXPECT().RequiredDocumentsPresent(gomock.Any(), g.ID).Return(false, errors.New("timeout"))

		_, err := s.service.Advance(s.ctx, g.ID, models.StageOperationsProcessing, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("customs agent needs an arrival estimate", func() {
		s.SetupTest()
		g := s.createGroup()
		s.advanceTo(g.ID, models.StageOperationsProcessing)

		_, err := s.service.Advance(s.ctx, g.ID, models.StageCustomsAgentNotified, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeStageBlocked))
		s.Equal(PreconditionArrivalEstimate, dErrors.ReasonOf(err))

		_, err = s.service.RecordArrivalEstimate(s.ctx, g.ID, time.Now().AddDate(0, 1, 0))
		s.Require().NoError(err)
		s.advance(g.ID, models.StageCustomsAgentNotified)
	})

	s.Run("advancing to the current stage is a no-op", func() {
		s.SetupTest()
		g := s.createGroup()
		got, err := s.service.Advance(s.ctx, g.ID, models.StagePreparing, s.actor)
		s.Require().NoError(err)
		s.Len(got.History, 1)
	})

	s.Run("unknown group", func() {
		s.SetupTest()
		_, err := s.service.Advance(s.ctx, id.ImportGroupID(uuid.New()), models.StageClientAssignment, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Completion
// =============================================================================

func (s *WorkflowServiceSuite) TestComplete() {
	s.Run("outstanding work blocks completion until resolved", func() {
		s.SetupTest()
		g := s.createGroup()
		r := s.reserve(g.ID, 1)
		m, err := s.reservations.AddMember(s.ctx, g.ID, s.client)
		s.Require().NoError(err)
		s.advanceTo(g.ID, models.StageAwaitingClientDocuments)

		_, err = s.service.Advance(s.ctx, g.ID, models.StageCompleted, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeStageBlocked))
		s.Equal(PreconditionNoOpenReservations, dErrors.ReasonOf(err))

		_, err = s.reservations.Cancel(s.ctx, r.ID)
		s.Require().NoError(err)
		_, err = s.service.Advance(s.ctx, g.ID, models.StageCompleted, s.actor)
		s.Equal(PreconditionNoOpenMemberships, dErrors.ReasonOf(err))

		_, err = s.reservations.CancelMember(s.ctx, m.ID)
		s.Require().NoError(err)
		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		got, err := s.service.Advance(s.ctx, g.ID, models.StageCompleted, s.actor)
		s.Require().NoError(err)
		s.Equal(models.StageCompleted, got.Stage)

		_, err = s.service.Advance(s.ctx, g.ID, models.StageCancelled, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("completed group accepts no new reservations or members", func() {
		s.SetupTest()
		g := s.createGroup()
		s.advanceTo(g.ID, models.StageCompleted)

		_, err := s.reservations.Create(s.ctx, resservice.CreateParams{
			ClientID: s.client, WeaponModelID: s.model, ImportGroupID: g.ID, Quantity: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.reservations.AddMember(s.ctx, g.ID, s.client)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		remaining, err := s.quota.Remaining(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(10, remaining.Total)
		out, err := s.reservations.OutstandingCount(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Zero(out.Total())
	})

	s.Run("completion racing a new reservation never leaves it outstanding", func() {
		for range 20 {
			s.SetupTest()
			g := s.createGroup()
			s.advanceTo(g.ID, models.StageAwaitingClientDocuments)
			s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil).MaxTimes(1)

			var (
				wg                    sync.WaitGroup
				advanceErr, createErr error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, advanceErr = s.service.Advance(s.ctx, g.ID, models.StageCompleted, s.actor)
			}()
			go func() {
				defer wg.Done()
				_, createErr = s.reservations.Create(s.ctx, resservice.CreateParams{
					ClientID: s.client, WeaponModelID: s.model, ImportGroupID: g.ID, Quantity: 1,
				})
			}()
			wg.Wait()

			got, err := s.service.Get(s.ctx, g.ID)
			s.Require().NoError(err)
			out, err := s.reservations.OutstandingCount(s.ctx, g.ID)
			s.Require().NoError(err)
			if got.Stage == models.StageCompleted {
				s.NoError(advanceErr)
				s.True(dErrors.HasCode(createErr, dErrors.CodeInvalidState))
				s.Zero(out.Reservations)
			} else {
				s.NoError(createErr)
				s.True(dErrors.HasCode(advanceErr, dErrors.CodeStageBlocked))
				s.Equal(1, out.Reservations)
			}
		}
	})
}

// =============================================================================
// Cancel
// =============================================================================

func (s *WorkflowServiceSuite) TestCancel() {
	s.Run("cascades to reservations serials and quota", func() {
		s.SetupTest()
		g := s.createGroup()
		_, err := s.inventory.LoadUnit(s.ctx, "SN-1", s.model, &g.ID)
		s.Require().NoError(err)
		r := s.reserve(g.ID, 2)
		_, err = s.reservations.BindNextSerial(s.ctx, r.ID, "SN-1", s.actor)
		s.Require().NoError(err)
		_, err = s.reservations.AddMember(s.ctx, g.ID, s.client)
		s.Require().NoError(err)

		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		got, err := s.service.Advance(s.ctx, g.ID, models.StageCancelled, s.actor)
		s.Require().NoError(err)
		s.Equal(models.StageCancelled, got.Stage)

		res, err := s.reservations.Get(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(resmodels.StateCancelled, res.State)

		unit, err := s.inventory.Get(s.ctx, "SN-1")
		s.Require().NoError(err)
		s.Equal(invmodels.StateAvailable, unit.State)

		remaining, err := s.quota.Remaining(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(10, remaining.Total)

		out, err := s.reservations.OutstandingCount(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Zero(out.Total())
		s.Contains(s.audit.Actions(), audit.EventGroupCancelled.String())
	})

	s.Run("partly sold reservation is cancelled with its sold units kept", func() {
		s.SetupTest()
		g := s.createGroup()
		for _, serial := range []string{"SN-1", "SN-2"} {
			_, err := s.inventory.LoadUnit(s.ctx, serial, s.model, &g.ID)
			s.Require().NoError(err)
		}
		s.advance(g.ID, models.StageClientAssignment)
		r := s.reserve(g.ID, 2)
		for _, serial := range []string{"SN-1", "SN-2"} {
			_, err := s.reservations.BindNextSerial(s.ctx, r.ID, serial, s.actor)
			s.Require().NoError(err)
		}
		_, err := s.inventory.MarkSold(s.ctx, "SN-1")
		s.Require().NoError(err)

		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		got, err := s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)
		s.Equal(models.StageCancelled, got.Stage)

		res, err := s.reservations.Get(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(resmodels.StateCancelled, res.State)
		sold, err := s.inventory.Get(s.ctx, "SN-1")
		s.Require().NoError(err)
		s.Equal(invmodels.StateSold, sold.State)
		freed, err := s.inventory.Get(s.ctx, "SN-2")
		s.Require().NoError(err)
		s.Equal(invmodels.StateAvailable, freed.State)

		remaining, err := s.quota.Remaining(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(9, remaining.Total, "only the unsold unit is returned")
	})

	s.Run("fully sold reservation completes instead of cancelling", func() {
		s.SetupTest()
		g := s.createGroup()
		_, err := s.inventory.LoadUnit(s.ctx, "SN-1", s.model, &g.ID)
		s.Require().NoError(err)
		r := s.reserve(g.ID, 1)
		_, err = s.reservations.BindNextSerial(s.ctx, r.ID, "SN-1", s.actor)
		s.Require().NoError(err)
		_, err = s.inventory.MarkSold(s.ctx, "SN-1")
		s.Require().NoError(err)

		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		_, err = s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)

		res, err := s.reservations.Get(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(resmodels.StateCompleted, res.State)
	})

	s.Run("cancelled group accepts no new reservations or members", func() {
		s.SetupTest()
		g := s.createGroup()
		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		_, err := s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)

		_, err = s.reservations.Create(s.ctx, resservice.CreateParams{
			ClientID: s.client, WeaponModelID: s.model, ImportGroupID: g.ID, Quantity: 2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.reservations.AddMember(s.ctx, g.ID, s.client)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		remaining, err := s.quota.Remaining(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(10, remaining.Total)
		out, err := s.reservations.OutstandingCount(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Zero(out.Total())
	})

	s.Run("cancelling twice is a no-op", func() {
		s.SetupTest()
		g := s.createGroup()
		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		_, err := s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)
		got, err := s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)
		s.Equal(models.StageCancelled, got.Stage)
	})

	s.Run("arrival estimate is rejected once cancelled", func() {
		s.SetupTest()
		g := s.createGroup()
		s.licenses.EXPECT().Free(gomock.Any(), s.license, g.ID).Return(nil)
		_, err := s.service.Cancel(s.ctx, g.ID, s.actor)
		s.Require().NoError(err)
		_, err = s.service.RecordArrivalEstimate(s.ctx, g.ID, time.Now())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// StageAndAlerts
// =============================================================================

func (s *WorkflowServiceSuite) TestStageAndAlerts() {
	s.Run("reports overdue and upcoming stages", func() {
		s.SetupTest()
		g := s.createGroup()
		today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
		_, err := s.service.RecordPlannedDate(s.ctx, g.ID, models.StageClientAssignment, today.AddDate(0, 0, -2))
		s.Require().NoError(err)
		_, err = s.service.RecordPlannedDate(s.ctx, g.ID, models.StageOperationsProcessing, today.AddDate(0, 0, 5))
		s.Require().NoError(err)

		summary, err := s.service.StageAndAlerts(s.ctx, g.ID, today)
		s.Require().NoError(err)
		s.Equal(models.StagePreparing, summary.Stage)
		s.Require().Len(summary.Alerts, 2)
		s.Equal(models.StageClientAssignment, summary.Alerts[0].Stage)
		s.True(summary.Alerts[0].Overdue)
		s.Equal(-2, summary.Alerts[0].DaysRemaining)
		s.Equal(5, summary.Alerts[1].DaysRemaining)
		s.False(summary.Alerts[1].Overdue)

		s.advance(g.ID, models.StageClientAssignment)
		summary, err = s.service.StageAndAlerts(s.ctx, g.ID, today)
		s.Require().NoError(err)
		s.Len(summary.Alerts, 1)
	})

	s.Run("planned dates cannot target CANCELLED", func() {
		s.SetupTest()
		g := s.createGroup()
		_, err := s.service.RecordPlannedDate(s.ctx, g.ID, models.StageCancelled, time.Now())
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
