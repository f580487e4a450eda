package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"arsenal/internal/reservation/models"
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

const reservationColumns = `id, client_id, vendor_id, weapon_model_id, import_group_id, category, quantity, unit_price,
	state, created_by, created_at, updated_at, confirmed_at, cancelled_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Reservation) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, uuid.UUID(r.ID), uuid.UUID(r.ClientID), uuid.UUID(r.VendorID), uuid.UUID(r.WeaponModelID),
		uuid.UUID(r.ImportGroupID), r.Category.String(), r.Quantity, r.UnitPrice, r.State.String(),
		nullUser(r.CreatedBy), r.CreatedAt, r.UpdatedAt, r.ConfirmedAt, r.CancelledAt, r.CompletedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, uuid.UUID(resID))
	return scanReservation(row)
}

// Execute locks the reservation row and writes back guarded on the state it
// read.
func (s *PostgresStore) Execute(ctx context.Context, resID id.ReservationID, validate func(*models.Reservation) error, mutate func(*models.Reservation)) (*models.Reservation, error) {
	var result *models.Reservation
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		r, err := scanReservation(q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, uuid.UUID(resID)))
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		prevState := r.State
		mutate(r)

		res, err := q.ExecContext(ctx, `
			UPDATE reservations
			SET state = $2, updated_at = $3, confirmed_at = $4, cancelled_at = $5, completed_at = $6
			WHERE id = $1 AND state = $7
		`, uuid.UUID(r.ID), r.State.String(), r.UpdatedAt, r.ConfirmedAt, r.CancelledAt, r.CompletedAt, prevState.String())
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		} else if n == 0 {
			return sentinel.ErrConflict
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ListByGroup(ctx context.Context, groupID id.ImportGroupID) ([]*models.Reservation, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE import_group_id = $1 ORDER BY created_at`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountOutstanding(ctx context.Context, groupID id.ImportGroupID) (int, error) {
	var n int
	err := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*) FROM reservations
		WHERE import_group_id = $1 AND state NOT IN ('COMPLETED', 'CANCELLED')
	`, uuid.UUID(groupID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outstanding reservations: %w", err)
	}
	return n, nil
}

const membershipColumns = `id, import_group_id, client_id, state, created_at, updated_at`

func (s *PostgresStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO group_memberships (`+membershipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(m.ID), uuid.UUID(m.ImportGroupID), uuid.UUID(m.ClientID), m.State.String(), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMembership(ctx context.Context, mID id.MembershipID) (*models.Membership, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM group_memberships WHERE id = $1`, uuid.UUID(mID))
	return scanMembership(row)
}

func (s *PostgresStore) ExecuteMembership(ctx context.Context, mID id.MembershipID, validate func(*models.Membership) error, mutate func(*models.Membership)) (*models.Membership, error) {
	var result *models.Membership
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		m, err := scanMembership(q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM group_memberships WHERE id = $1 FOR UPDATE`, uuid.UUID(mID)))
		if err != nil {
			return err
		}
		if err := validate(m); err != nil {
			return err
		}
		prevState := m.State
		mutate(m)

		res, err := q.ExecContext(ctx, `
			UPDATE group_memberships SET state = $2, updated_at = $3
			WHERE id = $1 AND state = $4
		`, uuid.UUID(m.ID), m.State.String(), m.UpdatedAt, prevState.String())
		if err != nil {
			return fmt.Errorf("update membership: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update membership: %w", err)
		} else if n == 0 {
			return sentinel.ErrConflict
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, groupID id.ImportGroupID) ([]*models.Membership, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM group_memberships WHERE import_group_id = $1 ORDER BY created_at`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountOutstandingMemberships(ctx context.Context, groupID id.ImportGroupID) (int, error) {
	var n int
	err := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*) FROM group_memberships
		WHERE import_group_id = $1 AND state NOT IN ('COMPLETED', 'CANCELLED')
	`, uuid.UUID(groupID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outstanding memberships: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReservation(row scanner) (*models.Reservation, error) {
	var (
		r                                       models.Reservation
		resID, clientID, vendorID, modelID, gID uuid.UUID
		createdBy                               uuid.NullUUID
		category, state                         string
		confirmedAt, cancelledAt, completedAt   sql.NullTime
	)
	err := row.Scan(&resID, &clientID, &vendorID, &modelID, &gID, &category, &r.Quantity, &r.UnitPrice,
		&state, &createdBy, &r.CreatedAt, &r.UpdatedAt, &confirmedAt, &cancelledAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	r.ID = id.ReservationID(resID)
	r.ClientID = id.ClientID(clientID)
	r.VendorID = id.VendorID(vendorID)
	r.WeaponModelID = id.WeaponModelID(modelID)
	r.ImportGroupID = id.ImportGroupID(gID)
	r.Category = id.QuotaCategory(category)
	r.State = models.State(state)
	if createdBy.Valid {
		r.CreatedBy = id.UserID(createdBy.UUID)
	}
	r.ConfirmedAt = timePtr(confirmedAt)
	r.CancelledAt = timePtr(cancelledAt)
	r.CompletedAt = timePtr(completedAt)
	return &r, nil
}

func scanMembership(row scanner) (*models.Membership, error) {
	var (
		m             models.Membership
		mID, gID, cID uuid.UUID
		state         string
	)
	err := row.Scan(&mID, &gID, &cID, &state, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	m.ID = id.MembershipID(mID)
	m.ImportGroupID = id.ImportGroupID(gID)
	m.ClientID = id.ClientID(cID)
	m.State = models.MembershipState(state)
	return &m, nil
}

func nullUser(u id.UserID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(u), Valid: !u.IsNil()}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
