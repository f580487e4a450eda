package models

import (
	"time"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type MembershipState string

const (
	MembershipPending   MembershipState = "PENDING"
	MembershipApproved  MembershipState = "APPROVED"
	MembershipConfirmed MembershipState = "CONFIRMED"
	MembershipCompleted MembershipState = "COMPLETED"
	MembershipCancelled MembershipState = "CANCELLED"
)

func (s MembershipState) String() string { return string(s) }

func (s MembershipState) IsTerminal() bool {
	return s == MembershipCompleted || s == MembershipCancelled
}

// membershipNext is the only forward edge out of each state. CANCELLED is
// reachable from every non-terminal state and is handled separately.
var membershipNext = map[MembershipState]MembershipState{
	MembershipPending:   MembershipApproved,
	MembershipApproved:  MembershipConfirmed,
	MembershipConfirmed: MembershipCompleted,
}

// Membership records a client's participation in an import group,
// independent of any concrete reservation. One per (group, client).
type Membership struct {
	ID            id.MembershipID  `json:"id"`
	ImportGroupID id.ImportGroupID `json:"import_group_id"`
	ClientID      id.ClientID      `json:"client_id"`
	State         MembershipState  `json:"state"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func NewMembership(mID id.MembershipID, groupID id.ImportGroupID, clientID id.ClientID, now time.Time) (*Membership, error) {
	if groupID.IsNil() || clientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "import group and client are required")
	}
	return &Membership{
		ID:            mID,
		ImportGroupID: groupID,
		ClientID:      clientID,
		State:         MembershipPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransition returns noop=true when the membership is already in target.
func (m *Membership) CanTransition(target MembershipState) (noop bool, err error) {
	if m.State == target {
		return true, nil
	}
	if m.State.IsTerminal() {
		return false, dErrors.Newf(dErrors.CodeInvalidState, "membership is %s", m.State)
	}
	if target == MembershipCancelled || membershipNext[m.State] == target {
		return false, nil
	}
	return false, dErrors.Newf(dErrors.CodeInvalidState, "membership cannot move from %s to %s", m.State, target)
}

func (m *Membership) ApplyTransition(target MembershipState, now time.Time) {
	m.State = target
	m.UpdatedAt = now
}
