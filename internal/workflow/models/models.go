package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	quotamodels "arsenal/internal/quota/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type Stage string

const (
	StagePreparing                Stage = "PREPARING"
	StageClientAssignment         Stage = "CLIENT_ASSIGNMENT"
	StageFactoryProformaRequested Stage = "FACTORY_PROFORMA_REQUESTED"
	StageOperationsProcessing     Stage = "OPERATIONS_PROCESSING"
	StageCustomsAgentNotified     Stage = "CUSTOMS_AGENT_NOTIFIED"
	StageAwaitingClientDocuments  Stage = "AWAITING_CLIENT_DOCUMENTS"
	StageCompleted                Stage = "COMPLETED"
	StageCancelled                Stage = "CANCELLED"
)

// Pipeline is the forward order. CANCELLED sits outside it.
var Pipeline = []Stage{
	StagePreparing,
	StageClientAssignment,
	StageFactoryProformaRequested,
	StageOperationsProcessing,
	StageCustomsAgentNotified,
	StageAwaitingClientDocuments,
	StageCompleted,
}

// Transitions lists the legal targets from each non-terminal stage: the next
// pipeline stage, or CANCELLED.
var Transitions = func() map[Stage][]Stage {
	t := make(map[Stage][]Stage, len(Pipeline))
	for i := 0; i < len(Pipeline)-1; i++ {
		t[Pipeline[i]] = []Stage{Pipeline[i+1], StageCancelled}
	}
	return t
}()

func (s Stage) String() string { return string(s) }

func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageCancelled
}

func (s Stage) IsValid() bool {
	return s == StageCancelled || slices.Contains(Pipeline, s)
}

func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown stage: "+raw)
	}
	return s, nil
}

// Next returns the following pipeline stage.
func (s Stage) Next() (Stage, bool) {
	i := slices.Index(Pipeline, s)
	if i < 0 || i == len(Pipeline)-1 {
		return "", false
	}
	return Pipeline[i+1], true
}

type StageEntry struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"entered_at"`
	ActorID   id.UserID `json:"actor_id"`
}

// ImportGroup is one licensed import batch moving through the pipeline.
//
// Invariants:
//   - Stage only moves one pipeline step forward, or to CANCELLED
//   - COMPLETED and CANCELLED are final
//   - History holds one entry per stage entered, oldest first
type ImportGroup struct {
	ID              id.ImportGroupID      `json:"id"`
	LicenseID       id.LicenseID          `json:"license_id"`
	Type            quotamodels.GroupType `json:"type"`
	Stage           Stage                 `json:"stage"`
	ArrivalEstimate *time.Time            `json:"arrival_estimate,omitempty"`
	PlannedDates    map[Stage]time.Time   `json:"planned_dates"`
	History         []StageEntry          `json:"history"`
	CreatedBy       id.UserID             `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func NewImportGroup(groupID id.ImportGroupID, licenseID id.LicenseID, groupType quotamodels.GroupType, actor id.UserID, now time.Time) (*ImportGroup, error) {
	if licenseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "license is required")
	}
	if !groupType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid import group type")
	}
	return &ImportGroup{
		ID:           groupID,
		LicenseID:    licenseID,
		Type:         groupType,
		Stage:        StagePreparing,
		PlannedDates: make(map[Stage]time.Time),
		History:      []StageEntry{{Stage: StagePreparing, EnteredAt: now, ActorID: actor}},
		CreatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanAdvance checks the transition is in the table. Advancing to the current
// stage reports noop=true.
func (g *ImportGroup) CanAdvance(target Stage) (noop bool, err error) {
	if g.Stage == target {
		return true, nil
	}
	if g.Stage.IsTerminal() {
		return false, dErrors.Newf(dErrors.CodeInvalidState, "import group is %s", g.Stage)
	}
	if !slices.Contains(Transitions[g.Stage], target) {
		next, _ := g.Stage.Next()
		return false, dErrors.Newf(dErrors.CodeInvalidState, "cannot move from %s to %s; next stage is %s", g.Stage, target, next)
	}
	return false, nil
}

func (g *ImportGroup) ApplyAdvance(target Stage, actor id.UserID, now time.Time) {
	g.Stage = target
	g.History = append(g.History, StageEntry{Stage: target, EnteredAt: now, ActorID: actor})
	g.UpdatedAt = now
}

// Reached reports whether the group has ever entered stage.
func (g *ImportGroup) Reached(stage Stage) bool {
	return slices.ContainsFunc(g.History, func(e StageEntry) bool { return e.Stage == stage })
}

func (g *ImportGroup) SetPlannedDate(stage Stage, date time.Time, now time.Time) error {
	if stage == StageCancelled || !stage.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "planned dates apply to pipeline stages only")
	}
	if g.PlannedDates == nil {
		g.PlannedDates = make(map[Stage]time.Time)
	}
	g.PlannedDates[stage] = truncateDay(date)
	g.UpdatedAt = now
	return nil
}

func (g *ImportGroup) SetArrivalEstimate(date time.Time, now time.Time) error {
	if g.Stage.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "import group is %s", g.Stage)
	}
	d := truncateDay(date)
	g.ArrivalEstimate = &d
	g.UpdatedAt = now
	return nil
}

func (g *ImportGroup) Clone() *ImportGroup {
	cp := *g
	cp.PlannedDates = maps.Clone(g.PlannedDates)
	cp.History = slices.Clone(g.History)
	if g.ArrivalEstimate != nil {
		d := *g.ArrivalEstimate
		cp.ArrivalEstimate = &d
	}
	return &cp
}

// StageAlert reports how far a not-yet-reached stage is from its planned date.
type StageAlert struct {
	Stage         Stage     `json:"stage"`
	PlannedDate   time.Time `json:"planned_date"`
	DaysRemaining int       `json:"days_remaining"`
	Overdue       bool      `json:"overdue"`
}

// Alerts computes DaysRemaining = planned - today in whole days for stages
// with a planned date the group has not reached. Terminal groups have none.
func (g *ImportGroup) Alerts(today time.Time) []StageAlert {
	if g.Stage.IsTerminal() {
		return nil
	}
	day := truncateDay(today)
	var out []StageAlert
	for _, stage := range Pipeline {
		planned, ok := g.PlannedDates[stage]
		if !ok || g.Reached(stage) {
			continue
		}
		days := int(truncateDay(planned).Sub(day).Hours() / 24)
		out = append(out, StageAlert{
			Stage:         stage,
			PlannedDate:   planned,
			DaysRemaining: days,
			Overdue:       days < 0,
		})
	}
	return out
}

// StageSummary is the read model for the stage-and-alerts view.
type StageSummary struct {
	ImportGroupID   id.ImportGroupID `json:"import_group_id"`
	Stage           Stage            `json:"stage"`
	History         []StageEntry     `json:"history"`
	ArrivalEstimate *time.Time       `json:"arrival_estimate,omitempty"`
	Alerts          []StageAlert     `json:"alerts"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
