package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"arsenal/internal/quota/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/pgerr"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/platform/tx"
)

const (
	dimCategory = "category"
	dimVendor   = "vendor"
)

// PostgresStore keeps one quota_ledgers row per group plus one
// quota_dimensions row per configured or consumed category/vendor key.
// Execute holds the ledger row lock for the whole read-modify-write, so
// admits on one group serialize while other groups proceed.
type PostgresStore struct {
	db *sql.DB
	tx *tx.Postgres
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: tx.NewPostgres(db)}
}

func (s *PostgresStore) Create(ctx context.Context, ledger *models.Ledger) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		_, err := q.ExecContext(ctx, `
			INSERT INTO quota_ledgers (import_group_id, group_type, total_limit, consumed_total, version)
			VALUES ($1, $2, $3, $4, 0)
		`, uuid.UUID(ledger.ImportGroupID), string(ledger.Type), ledger.Limits.Total, ledger.ConsumedTotal)
		if err != nil {
			if pgerr.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert quota ledger: %w", err)
		}
		return s.writeDimensions(ctx, q, ledger)
	})
}

func (s *PostgresStore) FindByGroup(ctx context.Context, groupID id.ImportGroupID) (*models.Ledger, error) {
	return s.load(ctx, tx.Use(ctx, s.db), groupID, false)
}

func (s *PostgresStore) Execute(ctx context.Context, groupID id.ImportGroupID, fn func(*models.Ledger) error) (*models.Ledger, error) {
	var result *models.Ledger
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		ledger, err := s.load(ctx, q, groupID, true)
		if err != nil {
			return err
		}
		prevVersion := ledger.Version
		if err := fn(ledger); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `
			UPDATE quota_ledgers
			SET total_limit = $2, consumed_total = $3, version = version + 1
			WHERE import_group_id = $1 AND version = $4
		`, uuid.UUID(groupID), ledger.Limits.Total, ledger.ConsumedTotal, prevVersion)
		if err != nil {
			return fmt.Errorf("update quota ledger: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sentinel.ErrConflict
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM quota_dimensions WHERE import_group_id = $1`, uuid.UUID(groupID)); err != nil {
			return fmt.Errorf("reset quota dimensions: %w", err)
		}
		if err := s.writeDimensions(ctx, q, ledger); err != nil {
			return err
		}
		ledger.Version = prevVersion + 1
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) load(ctx context.Context, q tx.Querier, groupID id.ImportGroupID, forUpdate bool) (*models.Ledger, error) {
	query := `SELECT group_type, total_limit, consumed_total, version FROM quota_ledgers WHERE import_group_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	ledger := &models.Ledger{
		ImportGroupID:    groupID,
		ConsumedCategory: make(map[id.QuotaCategory]int),
		ConsumedVendor:   make(map[id.VendorID]int),
		Limits: models.Limits{
			Categories: make(map[id.QuotaCategory]int),
			Vendors:    make(map[id.VendorID]int),
		},
	}
	var groupType string
	err := q.QueryRowContext(ctx, query, uuid.UUID(groupID)).Scan(&groupType, &ledger.Limits.Total, &ledger.ConsumedTotal, &ledger.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quota ledger: %w", err)
	}
	ledger.Type = models.GroupType(groupType)

	rows, err := q.QueryContext(ctx, `
		SELECT dimension, dim_key, limit_value, consumed FROM quota_dimensions WHERE import_group_id = $1
	`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("load quota dimensions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dim, key string
			limit    sql.NullInt64
			consumed int
		)
		if err := rows.Scan(&dim, &key, &limit, &consumed); err != nil {
			return nil, fmt.Errorf("scan quota dimension: %w", err)
		}
		switch dim {
		case dimCategory:
			c := id.QuotaCategory(key)
			ledger.ConsumedCategory[c] = consumed
			if limit.Valid {
				ledger.Limits.Categories[c] = int(limit.Int64)
			}
		case dimVendor:
			v, err := id.ParseVendorID(key)
			if err != nil {
				return nil, fmt.Errorf("corrupt vendor key %q: %w", key, err)
			}
			ledger.ConsumedVendor[v] = consumed
			if limit.Valid {
				ledger.Limits.Vendors[v] = int(limit.Int64)
			}
		}
	}
	return ledger, rows.Err()
}

func (s *PostgresStore) writeDimensions(ctx context.Context, q tx.Querier, ledger *models.Ledger) error {
	insert := func(dim, key string, limit *int, consumed int) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO quota_dimensions (import_group_id, dimension, dim_key, limit_value, consumed)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(ledger.ImportGroupID), dim, key, limit, consumed)
		if err != nil {
			return fmt.Errorf("write quota dimension: %w", err)
		}
		return nil
	}

	categories := make(map[id.QuotaCategory]struct{})
	for c := range ledger.Limits.Categories {
		categories[c] = struct{}{}
	}
	for c := range ledger.ConsumedCategory {
		categories[c] = struct{}{}
	}
	for c := range categories {
		var limit *int
		if v, ok := ledger.Limits.Categories[c]; ok {
			limit = &v
		}
		if err := insert(dimCategory, string(c), limit, ledger.ConsumedCategory[c]); err != nil {
			return err
		}
	}

	vendors := make(map[id.VendorID]struct{})
	for v := range ledger.Limits.Vendors {
		vendors[v] = struct{}{}
	}
	for v := range ledger.ConsumedVendor {
		vendors[v] = struct{}{}
	}
	for v := range vendors {
		var limit *int
		if n, ok := ledger.Limits.Vendors[v]; ok {
			limit = &n
		}
		if err := insert(dimVendor, v.String(), limit, ledger.ConsumedVendor[v]); err != nil {
			return err
		}
	}
	return nil
}
