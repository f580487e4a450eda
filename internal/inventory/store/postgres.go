package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"arsenal/internal/inventory/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/pgerr"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/platform/sqlnull"
	"arsenal/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
	tx *tx.Postgres
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: tx.NewPostgres(db)}
}

const unitColumns = `serial, weapon_model_id, import_group_id, state, reservation_id, assigned_by, loaded_at, bound_at, sold_at`

func (s *PostgresStore) Create(ctx context.Context, u *models.SerialUnit) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO serial_units (`+unitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.Serial.String(), uuid.UUID(u.WeaponModelID), sqlnull.UUID(u.ImportGroupID), u.State.String(),
		sqlnull.UUID(u.ReservationID), sqlnull.UUID(u.AssignedBy), u.LoadedAt, u.BoundAt, u.SoldAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert serial unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySerial(ctx context.Context, serial id.SerialNumber) (*models.SerialUnit, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `SELECT `+unitColumns+` FROM serial_units WHERE serial = $1`, serial.String())
	return scanUnit(row)
}

func (s *PostgresStore) Exists(ctx context.Context, serial id.SerialNumber) (bool, error) {
	var exists bool
	err := tx.Use(ctx, s.db).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM serial_units WHERE serial = $1)`, serial.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check serial exists: %w", err)
	}
	return exists, nil
}

// Execute locks the row, validates, then writes back guarded on the state it
// read. A concurrent writer that got there first makes the guarded UPDATE
// affect zero rows, reported as ErrConflict.
func (s *PostgresStore) Execute(ctx context.Context, serial id.SerialNumber, validate func(*models.SerialUnit) error, mutate func(*models.SerialUnit)) (*models.SerialUnit, error) {
	var result *models.SerialUnit
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		unit, err := scanUnit(q.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM serial_units WHERE serial = $1 FOR UPDATE`, serial.String()))
		if err != nil {
			return err
		}
		if err := validate(unit); err != nil {
			return err
		}
		prevState := unit.State
		mutate(unit)

		res, err := q.ExecContext(ctx, `
			UPDATE serial_units
			SET state = $2, reservation_id = $3, assigned_by = $4, bound_at = $5, sold_at = $6
			WHERE serial = $1 AND state = $7
		`, unit.Serial.String(), unit.State.String(), sqlnull.UUID(unit.ReservationID), sqlnull.UUID(unit.AssignedBy),
			unit.BoundAt, unit.SoldAt, prevState.String())
		if err != nil {
			return fmt.Errorf("update serial unit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update serial unit: %w", err)
		}
		if n == 0 {
			return sentinel.ErrConflict
		}
		result = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ListAvailable(ctx context.Context, modelID id.WeaponModelID, groupID *id.ImportGroupID) ([]*models.SerialUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM serial_units WHERE state = 'AVAILABLE' AND weapon_model_id = $1`
	args := []any{uuid.UUID(modelID)}
	if groupID != nil {
		query += ` AND import_group_id = $2`
		args = append(args, uuid.UUID(*groupID))
	}
	query += ` ORDER BY serial`
	return s.list(ctx, query, args...)
}

func (s *PostgresStore) ListByReservation(ctx context.Context, reservationID id.ReservationID) ([]*models.SerialUnit, error) {
	return s.list(ctx, `SELECT `+unitColumns+` FROM serial_units WHERE reservation_id = $1 ORDER BY serial`, uuid.UUID(reservationID))
}

func (s *PostgresStore) StatsByModel(ctx context.Context) (map[id.WeaponModelID]models.StateCounts, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, `SELECT weapon_model_id, state, count(*) FROM serial_units GROUP BY weapon_model_id, state`)
	if err != nil {
		return nil, fmt.Errorf("serial stats: %w", err)
	}
	defer rows.Close()
	out := make(map[id.WeaponModelID]models.StateCounts)
	for rows.Next() {
		var (
			modelID uuid.UUID
			state   string
			n       int
		)
		if err := rows.Scan(&modelID, &state, &n); err != nil {
			return nil, fmt.Errorf("scan serial stats: %w", err)
		}
		c := out[id.WeaponModelID(modelID)]
		switch models.UnitState(state) {
		case models.StateAvailable:
			c.Available += n
		case models.StateBound:
			c.Bound += n
		case models.StateSold:
			c.Sold += n
		}
		out[id.WeaponModelID(modelID)] = c
	}
	return out, rows.Err()
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.SerialUnit, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list serial units: %w", err)
	}
	defer rows.Close()
	var out []*models.SerialUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (*models.SerialUnit, error) {
	var (
		u                                  models.SerialUnit
		serial, state                      string
		modelID                            uuid.UUID
		groupID, reservationID, assignedBy uuid.NullUUID
		boundAt, soldAt                    sql.NullTime
		loadedAt                           time.Time
	)
	err := row.Scan(&serial, &modelID, &groupID, &state, &reservationID, &assignedBy, &loadedAt, &boundAt, &soldAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan serial unit: %w", err)
	}
	u.Serial = id.SerialNumber(serial)
	u.WeaponModelID = id.WeaponModelID(modelID)
	u.State = models.UnitState(state)
	u.LoadedAt = loadedAt
	u.ImportGroupID = sqlnull.Ptr[id.ImportGroupID](groupID)
	u.ReservationID = sqlnull.Ptr[id.ReservationID](reservationID)
	u.AssignedBy = sqlnull.Ptr[id.UserID](assignedBy)
	if boundAt.Valid {
		u.BoundAt = &boundAt.Time
	}
	if soldAt.Valid {
		u.SoldAt = &soldAt.Time
	}
	return &u, nil
}
