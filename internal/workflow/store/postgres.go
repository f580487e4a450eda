package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	quotamodels "arsenal/internal/quota/models"
	"arsenal/internal/workflow/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/pgerr"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
	tx *tx.Postgres
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: tx.NewPostgres(db)}
}

const groupColumns = `id, license_id, group_type, stage, arrival_estimate, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, g *models.ImportGroup) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		_, err := q.ExecContext(ctx, `
			INSERT INTO import_groups (`+groupColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.UUID(g.ID), uuid.UUID(g.LicenseID), string(g.Type), g.Stage.String(), g.ArrivalEstimate,
			nullUser(g.CreatedBy), g.CreatedAt, g.UpdatedAt)
		if err != nil {
			if pgerr.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert import group: %w", err)
		}
		return s.writeChildren(ctx, q, g)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, groupID id.ImportGroupID) (*models.ImportGroup, error) {
	return s.load(ctx, tx.Use(ctx, s.db), groupID, false)
}

// Execute locks the group row and writes back guarded on the stage it read,
// so two transitions for one group can never both commit.
func (s *PostgresStore) Execute(ctx context.Context, groupID id.ImportGroupID, fn func(*models.ImportGroup) error) (*models.ImportGroup, error) {
	var result *models.ImportGroup
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		g, err := s.load(ctx, q, groupID, true)
		if err != nil {
			return err
		}
		prevStage := g.Stage
		if err := fn(g); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `
			UPDATE import_groups SET stage = $2, arrival_estimate = $3, updated_at = $4
			WHERE id = $1 AND stage = $5
		`, uuid.UUID(g.ID), g.Stage.String(), g.ArrivalEstimate, g.UpdatedAt, prevStage.String())
		if err != nil {
			return fmt.Errorf("update import group: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update import group: %w", err)
		} else if n == 0 {
			return sentinel.ErrConflict
		}
		if err := s.writeChildren(ctx, q, g); err != nil {
			return err
		}
		result = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.ImportGroup, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, `SELECT id FROM import_groups ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list import groups: %w", err)
	}
	var ids []id.ImportGroupID
	for rows.Next() {
		var gID uuid.UUID
		if err := rows.Scan(&gID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan import group id: %w", err)
		}
		ids = append(ids, id.ImportGroupID(gID))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*models.ImportGroup, 0, len(ids))
	for _, gID := range ids {
		g, err := s.FindByID(ctx, gID)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *PostgresStore) load(ctx context.Context, q tx.Querier, groupID id.ImportGroupID, forUpdate bool) (*models.ImportGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM import_groups WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		g                models.ImportGroup
		gID, licenseID   uuid.UUID
		groupType, stage string
		arrival          sql.NullTime
		createdBy        uuid.NullUUID
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(groupID)).Scan(
		&gID, &licenseID, &groupType, &stage, &arrival, &createdBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load import group: %w", err)
	}
	g.ID = id.ImportGroupID(gID)
	g.LicenseID = id.LicenseID(licenseID)
	g.Type = quotamodels.GroupType(groupType)
	g.Stage = models.Stage(stage)
	if arrival.Valid {
		t := arrival.Time
		g.ArrivalEstimate = &t
	}
	if createdBy.Valid {
		g.CreatedBy = id.UserID(createdBy.UUID)
	}

	history, err := q.QueryContext(ctx, `
		SELECT stage, entered_at, actor_id FROM import_group_stage_history
		WHERE import_group_id = $1 ORDER BY entered_at, stage
	`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("load stage history: %w", err)
	}
	defer history.Close()
	for history.Next() {
		var (
			e     models.StageEntry
			st    string
			actor uuid.NullUUID
		)
		if err := history.Scan(&st, &e.EnteredAt, &actor); err != nil {
			return nil, fmt.Errorf("scan stage history: %w", err)
		}
		e.Stage = models.Stage(st)
		if actor.Valid {
			e.ActorID = id.UserID(actor.UUID)
		}
		g.History = append(g.History, e)
	}
	if err := history.Err(); err != nil {
		return nil, err
	}

	planned, err := q.QueryContext(ctx, `
		SELECT stage, planned_date FROM import_group_planned_dates WHERE import_group_id = $1
	`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("load planned dates: %w", err)
	}
	defer planned.Close()
	g.PlannedDates = make(map[models.Stage]time.Time)
	for planned.Next() {
		var (
			st string
			d  time.Time
		)
		if err := planned.Scan(&st, &d); err != nil {
			return nil, fmt.Errorf("scan planned date: %w", err)
		}
		g.PlannedDates[models.Stage(st)] = d.UTC()
	}
	return &g, planned.Err()
}

// writeChildren upserts history and planned dates. History rows are
// append-only; a stage is entered at most once.
func (s *PostgresStore) writeChildren(ctx context.Context, q tx.Querier, g *models.ImportGroup) error {
	for _, e := range g.History {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO import_group_stage_history (import_group_id, stage, entered_at, actor_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (import_group_id, stage) DO NOTHING
		`, uuid.UUID(g.ID), e.Stage.String(), e.EnteredAt, nullUser(e.ActorID)); err != nil {
			return fmt.Errorf("insert stage history: %w", err)
		}
	}
	for stage, d := range g.PlannedDates {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO import_group_planned_dates (import_group_id, stage, planned_date)
			VALUES ($1, $2, $3)
			ON CONFLICT (import_group_id, stage) DO UPDATE SET planned_date = EXCLUDED.planned_date
		`, uuid.UUID(g.ID), stage.String(), d); err != nil {
			return fmt.Errorf("upsert planned date: %w", err)
		}
	}
	return nil
}

func nullUser(u id.UserID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(u), Valid: !u.IsNil()}
}
