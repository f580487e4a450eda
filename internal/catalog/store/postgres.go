package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"arsenal/internal/catalog/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/pgerr"
	"arsenal/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const modelColumns = `id, code, name, caliber, category, reference_price, created_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.WeaponModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weapon_models (`+modelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(m.ID), m.Code, m.Name, m.Caliber, string(m.Category), m.ReferencePrice, m.CreatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert weapon model: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, modelID id.WeaponModelID) (*models.WeaponModel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM weapon_models WHERE id = $1`, uuid.UUID(modelID))
	return scanModel(row)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.WeaponModel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM weapon_models WHERE code = $1`, models.NormalizeCode(code))
	return scanModel(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.WeaponModel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+modelColumns+` FROM weapon_models ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list weapon models: %w", err)
	}
	defer rows.Close()
	var out []*models.WeaponModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetClientCategory(ctx context.Context, clientID id.ClientID, category id.QuotaCategory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_categories (client_id, category) VALUES ($1, $2)
		ON CONFLICT (client_id) DO UPDATE SET category = EXCLUDED.category
	`, uuid.UUID(clientID), string(category))
	if err != nil {
		return fmt.Errorf("upsert client category: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClientCategory(ctx context.Context, clientID id.ClientID) (id.QuotaCategory, error) {
	var category string
	err := s.db.QueryRowContext(ctx, `SELECT category FROM client_categories WHERE client_id = $1`, uuid.UUID(clientID)).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find client category: %w", err)
	}
	return id.QuotaCategory(category), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (*models.WeaponModel, error) {
	var (
		m        models.WeaponModel
		modelID  uuid.UUID
		category string
	)
	err := row.Scan(&modelID, &m.Code, &m.Name, &m.Caliber, &category, &m.ReferencePrice, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan weapon model: %w", err)
	}
	m.ID = id.WeaponModelID(modelID)
	m.Category = id.QuotaCategory(category)
	return &m, nil
}
