package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quotamodels "arsenal/internal/quota/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

var now = time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)

func newGroup(t *testing.T) *ImportGroup {
	t.Helper()
	g, err := NewImportGroup(id.ImportGroupID(uuid.New()), id.LicenseID(uuid.New()), quotamodels.GroupTypeQuota, id.UserID(uuid.New()), now)
	require.NoError(t, err)
	return g
}

func TestTransitionTable(t *testing.T) {
	for i, from := range Pipeline[:len(Pipeline)-1] {
		assert.Equal(t, []Stage{Pipeline[i+1], StageCancelled}, Transitions[from], from)
	}
	_, ok := Transitions[StageCompleted]
	assert.False(t, ok)
	_, ok = Transitions[StageCancelled]
	assert.False(t, ok)
}

func TestCanAdvance(t *testing.T) {
	t.Run("one step forward", func(t *testing.T) {
		g := newGroup(t)
		noop, err := g.CanAdvance(StageClientAssignment)
		require.NoError(t, err)
		assert.False(t, noop)
	})

	t.Run("same stage is a noop", func(t *testing.T) {
		g := newGroup(t)
		noop, err := g.CanAdvance(StagePreparing)
		require.NoError(t, err)
		assert.True(t, noop)
	})

	t.Run("skipping fails", func(t *testing.T) {
		g := newGroup(t)
		g.ApplyAdvance(StageClientAssignment, id.UserID{}, now)
		_, err := g.CanAdvance(StageOperationsProcessing)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("backwards fails", func(t *testing.T) {
		g := newGroup(t)
		g.ApplyAdvance(StageClientAssignment, id.UserID{}, now)
		_, err := g.CanAdvance(StagePreparing)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("terminal stages are final", func(t *testing.T) {
		g := newGroup(t)
		g.ApplyAdvance(StageCancelled, id.UserID{}, now)
		_, err := g.CanAdvance(StageClientAssignment)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("cancel from any non-terminal stage", func(t *testing.T) {
		g := newGroup(t)
		for _, stage := range Pipeline[1:4] {
			g.ApplyAdvance(stage, id.UserID{}, now)
			_, err := g.CanAdvance(StageCancelled)
			assert.NoError(t, err, stage)
		}
	})
}

func TestAlerts(t *testing.T) {
	g := newGroup(t)
	require.NoError(t, g.SetPlannedDate(StageClientAssignment, now.AddDate(0, 0, -2), now))
	require.NoError(t, g.SetPlannedDate(StageCustomsAgentNotified, now.AddDate(0, 0, 5), now))
	require.NoError(t, g.SetPlannedDate(StagePreparing, now.AddDate(0, 0, -9), now))

	alerts := g.Alerts(now)
	require.Len(t, alerts, 2, "reached stages do not alert")
	assert.Equal(t, StageClientAssignment, alerts[0].Stage)
	assert.Equal(t, -2, alerts[0].DaysRemaining)
	assert.True(t, alerts[0].Overdue)
	assert.Equal(t, 5, alerts[1].DaysRemaining)
	assert.False(t, alerts[1].Overdue)

	g.ApplyAdvance(StageClientAssignment, id.UserID{}, now)
	assert.Len(t, g.Alerts(now), 1)

	g.ApplyAdvance(StageCancelled, id.UserID{}, now)
	assert.Empty(t, g.Alerts(now))
}

func TestPlannedDateRejectsCancelled(t *testing.T) {
	g := newGroup(t)
	err := g.SetPlannedDate(StageCancelled, now, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" operations_processing ")
	require.NoError(t, err)
	assert.Equal(t, StageOperationsProcessing, s)

	_, err = ParseStage("SHIPPED")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
