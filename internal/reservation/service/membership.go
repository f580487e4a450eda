package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"arsenal/internal/platform/lock"
	"arsenal/internal/reservation/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/requestcontext"
)

// AddMember enrolls a client in an open import group as PENDING. A client
// joins a group at most once. Memberships do not consume quota; the
// reservation a member later places does.
func (s *Service) AddMember(ctx context.Context, groupID id.ImportGroupID, clientID id.ClientID) (*models.Membership, error) {
	m, err := models.NewMembership(id.MembershipID(uuid.New()), groupID, clientID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.locker.WithLock(ctx, lock.GroupKey(groupID.String()), func(ctx context.Context) error {
		if err := s.requireOpenGroup(ctx, groupID); err != nil {
			return err
		}
		if err := s.memberships.CreateMembership(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "client is already a member of this import group")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logMembership(ctx, m, "")
	return m, nil
}

func (s *Service) Approve(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	return s.transitionMember(ctx, mID, models.MembershipApproved)
}

// ConfirmMember makes the client's participation permanent.
func (s *Service) ConfirmMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	return s.transitionMember(ctx, mID, models.MembershipConfirmed)
}

func (s *Service) CompleteMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	return s.transitionMember(ctx, mID, models.MembershipCompleted)
}

func (s *Service) CancelMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	return s.transitionMember(ctx, mID, models.MembershipCancelled)
}

func (s *Service) GetMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	m, err := s.memberships.FindMembership(ctx, mID)
	if err != nil {
		return nil, translate(err, "membership not found")
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, groupID id.ImportGroupID) ([]*models.Membership, error) {
	list, err := s.memberships.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}
	return list, nil
}

func (s *Service) transitionMember(ctx context.Context, mID id.MembershipID, target models.MembershipState) (*models.Membership, error) {
	now := requestcontext.Now(ctx)
	var (
		noop bool
		from models.MembershipState
	)
	m, err := s.memberships.ExecuteMembership(ctx, mID,
		func(m *models.Membership) error {
			var err error
			from = m.State
			noop, err = m.CanTransition(target)
			return err
		},
		func(m *models.Membership) {
			if !noop {
				m.ApplyTransition(target, now)
			}
		},
	)
	if err != nil {
		return nil, translate(err, "membership not found")
	}
	if !noop {
		s.logMembership(ctx, m, from)
	}
	return m, nil
}

func (s *Service) logMembership(ctx context.Context, m *models.Membership, from models.MembershipState) {
	args := []any{"client_id", m.ClientID.String(), "state", m.State.String()}
	if from != "" {
		args = append(args, "from", from.String())
	}
	s.emit(ctx, audit.EventMembershipChanged, m.ID.String(), m.ImportGroupID, args...)
}
