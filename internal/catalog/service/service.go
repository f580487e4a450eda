package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arsenal/internal/catalog/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, m *models.WeaponModel) error
	FindByID(ctx context.Context, modelID id.WeaponModelID) (*models.WeaponModel, error)
	FindByCode(ctx context.Context, code string) (*models.WeaponModel, error)
	List(ctx context.Context) ([]*models.WeaponModel, error)
	SetClientCategory(ctx context.Context, clientID id.ClientID, category id.QuotaCategory) error
	ClientCategory(ctx context.Context, clientID id.ClientID) (id.QuotaCategory, error)
}

// Service is the read side of weapon model and client reference data.
// Editing the catalog belongs to back office tooling; Register and
// SetClientCategory exist for seeding.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, code, name, caliber string, category id.QuotaCategory, price decimal.Decimal) (*models.WeaponModel, error) {
	m, err := models.NewWeaponModel(id.WeaponModelID(uuid.New()), code, name, caliber, category, price, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "model code already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register weapon model")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "weapon model registered", "model_id", m.ID, "code", m.Code)
	}
	return m, nil
}

func (s *Service) FindByID(ctx context.Context, modelID id.WeaponModelID) (*models.WeaponModel, error) {
	m, err := s.store.FindByID(ctx, modelID)
	if err != nil {
		return nil, translate(err, "weapon model not found")
	}
	return m, nil
}

// FindByCode matches case-insensitively.
func (s *Service) FindByCode(ctx context.Context, code string) (*models.WeaponModel, error) {
	m, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, translate(err, "weapon model not found")
	}
	return m, nil
}

func (s *Service) List(ctx context.Context) ([]*models.WeaponModel, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list weapon models")
	}
	return list, nil
}

func (s *Service) SetClientCategory(ctx context.Context, clientID id.ClientID, category id.QuotaCategory) error {
	if !category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid category")
	}
	if err := s.store.SetClientCategory(ctx, clientID, category); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set client category")
	}
	return nil
}

// Category resolves the quota category a client is counted under.
func (s *Service) Category(ctx context.Context, clientID id.ClientID) (id.QuotaCategory, error) {
	c, err := s.store.ClientCategory(ctx, clientID)
	if err != nil {
		return "", translate(err, "client has no quota category on file")
	}
	return c, nil
}

func translate(err error, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "catalog lookup failed")
}

