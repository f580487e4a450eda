package service

import (
	"context"
	"log/slog"

	catalogmodels "arsenal/internal/catalog/models"
	"arsenal/internal/intake/metrics"
	"arsenal/internal/intake/models"
	invmodels "arsenal/internal/inventory/models"
	"arsenal/pkg/attrs"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/requestcontext"
)

type Inventory interface {
	Exists(ctx context.Context, serial id.SerialNumber) (bool, error)
	LoadUnit(ctx context.Context, rawSerial string, modelID id.WeaponModelID, groupID *id.ImportGroupID) (*invmodels.SerialUnit, error)
}

type Catalog interface {
	FindByID(ctx context.Context, modelID id.WeaponModelID) (*catalogmodels.WeaponModel, error)
	FindByCode(ctx context.Context, code string) (*catalogmodels.WeaponModel, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates uploaded serial batches row by row and loads the valid
// ones through inventory. A bad row never aborts the batch.
type Service struct {
	inventory      Inventory
	catalog        Catalog
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(inventory Inventory, catalog Catalog, opts ...Option) *Service {
	s := &Service{inventory: inventory, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type IngestParams struct {
	Rows []models.Row
	// DefaultModelID applies to rows without a model code.
	DefaultModelID *id.WeaponModelID
	ImportGroupID  *id.ImportGroupID
}

// Ingest checks each row in order: non-empty serial, not already stored,
// resolvable weapon model. Rows are numbered from 1. Only infrastructure
// failures return an error; everything else is reported per row.
func (s *Service) Ingest(ctx context.Context, p IngestParams) (*models.Result, error) {
	result := &models.Result{Rejected: []models.Rejection{}}
	codes := make(map[string]id.WeaponModelID)

	// A default naming no model resolves nothing; rows that need it are
	// rejected one by one.
	var defaultModel *id.WeaponModelID
	if p.DefaultModelID != nil {
		if _, err := s.catalog.FindByID(ctx, *p.DefaultModelID); err == nil {
			defaultModel = p.DefaultModelID
		} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}

	for i, row := range p.Rows {
		n := i + 1
		serial, err := id.ParseSerialNumber(row.Serial)
		if err != nil {
			result.Rejected = append(result.Rejected, s.reject(n, row, models.ReasonEmptySerial, "serial is empty"))
			continue
		}
		exists, err := s.inventory.Exists(ctx, serial)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Rejected = append(result.Rejected, s.reject(n, row, models.ReasonDuplicateSerial, "serial already exists"))
			continue
		}
		modelID, ok, err := s.resolveModel(ctx, row.ModelCode, defaultModel, codes)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Rejected = append(result.Rejected, s.reject(n, row, models.ReasonUnresolvedModel, "weapon model could not be resolved"))
			continue
		}
		if _, err := s.inventory.LoadUnit(ctx, serial.String(), modelID, p.ImportGroupID); err != nil {
			reason := rowReason(err)
			if reason == "" {
				return nil, err
			}
			result.Rejected = append(result.Rejected, s.reject(n, row, reason, err.Error()))
			continue
		}
		result.Accepted++
		s.metrics.ObserveRow("accepted")
	}

	s.metrics.ObserveBatch(len(p.Rows))
	s.logAudit(ctx, p, result)
	return result, nil
}

// resolveModel prefers the row's own code. A code that names no model
// rejects the row rather than falling back to the default.
func (s *Service) resolveModel(ctx context.Context, code string, defaultModel *id.WeaponModelID, cache map[string]id.WeaponModelID) (id.WeaponModelID, bool, error) {
	if code == "" {
		if defaultModel == nil {
			return id.WeaponModelID{}, false, nil
		}
		return *defaultModel, true, nil
	}
	if modelID, ok := cache[code]; ok {
		return modelID, true, nil
	}
	m, err := s.catalog.FindByCode(ctx, code)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return id.WeaponModelID{}, false, nil
	}
	if err != nil {
		return id.WeaponModelID{}, false, err
	}
	cache[code] = m.ID
	return m.ID, true, nil
}

// rowReason maps a LoadUnit failure to a row rejection. A concurrent upload
// can still win the serial between Exists and LoadUnit.
func rowReason(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeDuplicateSerial):
		return models.ReasonDuplicateSerial
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return models.ReasonUnresolvedModel
	}
	return ""
}

func (s *Service) reject(row int, r models.Row, reason, msg string) models.Rejection {
	s.metrics.ObserveRow(reason)
	return models.Rejection{Row: row, Serial: r.Serial, Reason: reason, Message: msg}
}

func (s *Service) logAudit(ctx context.Context, p IngestParams, result *models.Result) {
	requestID := requestcontext.RequestID(ctx)
	groupID := ""
	if p.ImportGroupID != nil {
		groupID = p.ImportGroupID.String()
	}
	attributes := []any{
		"rows", len(p.Rows),
		"accepted", result.Accepted,
		"rejected", len(result.Rejected),
	}
	args := append(attributes,
		"import_group_id", groupID,
		"event", audit.EventBulkIntake.String(),
		"log_type", "audit",
	)
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, audit.EventBulkIntake.String(), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:        audit.EventBulkIntake.String(),
		ActorID:       requestcontext.ActorID(ctx),
		Subject:       "intake",
		ImportGroupID: groupID,
		RequestID:     requestID,
		Details:       attrs.ToMap(attributes),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", audit.EventBulkIntake.String(), "error", err)
	}
}
