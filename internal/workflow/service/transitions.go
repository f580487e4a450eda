package service

import (
	"context"
	"fmt"

	"arsenal/internal/workflow/models"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
)

// Precondition names surface as the reason on stage_blocked errors.
const (
	PreconditionRequiredDocuments  = "required_documents_present"
	PreconditionArrivalEstimate    = "arrival_estimate_recorded"
	PreconditionNoOpenReservations = "no_outstanding_reservations"
	PreconditionNoOpenMemberships  = "no_outstanding_memberships"
)

// precondition gates entry into a stage. Remote checks call collaborators
// and run outside the group lock.
type precondition struct {
	name   string
	remote bool
	check  func(ctx context.Context, g *models.ImportGroup) (bool, error)
}

// transitionGates maps each target stage to what must hold before entering
// it. Legal source stages live in models.Transitions; a stage missing here
// only needs the operator's request.
func (s *Service) transitionGates() map[models.Stage][]precondition {
	return map[models.Stage][]precondition{
		models.StageOperationsProcessing: {
			{name: PreconditionRequiredDocuments, remote: true, check: s.documentsPresent},
		},
		models.StageCustomsAgentNotified: {
			{name: PreconditionArrivalEstimate, check: arrivalRecorded},
		},
		models.StageCompleted: {
			{name: PreconditionNoOpenReservations, check: s.noOpenReservations},
			{name: PreconditionNoOpenMemberships, check: s.noOpenMemberships},
		},
	}
}

func (s *Service) checkGates(ctx context.Context, g *models.ImportGroup, target models.Stage, remote bool) error {
	for _, p := range s.gates[target] {
		if p.remote != remote {
			continue
		}
		ok, err := p.check(ctx, g)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("precondition %s could not be evaluated", p.name))
		}
		if !ok {
			s.metrics.IncrementBlocked(p.name)
			s.logAudit(ctx, audit.EventStageBlocked, g, p.name, "target", target.String())
			return dErrors.WithReason(dErrors.CodeStageBlocked, p.name,
				fmt.Sprintf("cannot enter %s: %s not met", target, p.name))
		}
	}
	return nil
}

func (s *Service) documentsPresent(ctx context.Context, g *models.ImportGroup) (bool, error) {
	return s.documents.RequiredDocumentsPresent(ctx, g.ID)
}

func arrivalRecorded(_ context.Context, g *models.ImportGroup) (bool, error) {
	return g.ArrivalEstimate != nil, nil
}

func (s *Service) noOpenReservations(ctx context.Context, g *models.ImportGroup) (bool, error) {
	out, err := s.reservations.OutstandingCount(ctx, g.ID)
	if err != nil {
		return false, err
	}
	return out.Reservations == 0, nil
}

func (s *Service) noOpenMemberships(ctx context.Context, g *models.ImportGroup) (bool, error) {
	out, err := s.reservations.OutstandingCount(ctx, g.ID)
	if err != nil {
		return false, err
	}
	return out.Memberships == 0, nil
}
