package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"arsenal/internal/license/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, l *models.License) error
	FindByID(ctx context.Context, licenseID id.LicenseID) (*models.License, error)
	Execute(ctx context.Context, licenseID id.LicenseID, validate func(*models.License) error, mutate func(*models.License)) (*models.License, error)
	List(ctx context.Context) ([]*models.License, error)
}

// Service is the license directory: it records which import group, if any,
// currently occupies each license.
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

func (s *Service) Register(ctx context.Context, number string) (*models.License, error) {
	l, err := models.NewLicense(id.LicenseID(uuid.New()), number, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, l); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "license number already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register license")
	}
	return l, nil
}

// Bind marks the license OCCUPIED by groupID.
func (s *Service) Bind(ctx context.Context, licenseID id.LicenseID, groupID id.ImportGroupID) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, licenseID,
		func(l *models.License) error { return l.CanBind(groupID) },
		func(l *models.License) { l.ApplyBind(groupID, now) },
	)
	if err != nil {
		return translate(err)
	}
	s.log(ctx, "license bound", licenseID, groupID)
	return nil
}

// Free releases the license held by groupID. Freeing a FREE license is a no-op.
func (s *Service) Free(ctx context.Context, licenseID id.LicenseID, groupID id.ImportGroupID) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, licenseID,
		func(l *models.License) error { return l.CanFree(groupID) },
		func(l *models.License) { l.ApplyFree(now) },
	)
	if err != nil {
		return translate(err)
	}
	s.log(ctx, "license freed", licenseID, groupID)
	return nil
}

func (s *Service) Get(ctx context.Context, licenseID id.LicenseID) (*models.License, error) {
	l, err := s.store.FindByID(ctx, licenseID)
	if err != nil {
		return nil, translate(err)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context) ([]*models.License, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses")
	}
	return list, nil
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "license not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "license operation failed")
}

func (s *Service) log(ctx context.Context, msg string, licenseID id.LicenseID, groupID id.ImportGroupID) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg,
		"license_id", licenseID.String(),
		"import_group_id", groupID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
