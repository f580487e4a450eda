package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"arsenal/internal/license/models"
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

func (s *PostgresStore) Create(ctx context.Context, l *models.License) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO licenses (id, number, status, import_group_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(l.ID), l.Number, l.Status.String(), sqlnull.UUID(l.ImportGroupID), l.UpdatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, licenseID id.LicenseID) (*models.License, error) {
	return scanLicense(tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, number, status, import_group_id, updated_at FROM licenses WHERE id = $1`, uuid.UUID(licenseID)))
}

func (s *PostgresStore) Execute(ctx context.Context, licenseID id.LicenseID, validate func(*models.License) error, mutate func(*models.License)) (*models.License, error) {
	var result *models.License
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		l, err := scanLicense(q.QueryRowContext(ctx,
			`SELECT id, number, status, import_group_id, updated_at FROM licenses WHERE id = $1 FOR UPDATE`, uuid.UUID(licenseID)))
		if err != nil {
			return err
		}
		if err := validate(l); err != nil {
			return err
		}
		mutate(l)
		if _, err := q.ExecContext(ctx, `
			UPDATE licenses SET status = $2, import_group_id = $3, updated_at = $4 WHERE id = $1
		`, uuid.UUID(l.ID), l.Status.String(), sqlnull.UUID(l.ImportGroupID), l.UpdatedAt); err != nil {
			return fmt.Errorf("update license: %w", err)
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.License, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx,
		`SELECT id, number, status, import_group_id, updated_at FROM licenses ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()
	var out []*models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLicense(row scanner) (*models.License, error) {
	var (
		l       models.License
		lID     uuid.UUID
		status  string
		groupID uuid.NullUUID
	)
	err := row.Scan(&lID, &l.Number, &status, &groupID, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan license: %w", err)
	}
	l.ID = id.LicenseID(lID)
	l.Status = models.Status(status)
	l.ImportGroupID = sqlnull.Ptr[id.ImportGroupID](groupID)
	return &l, nil
}
