package audit

import (
	"context"
	"time"

	id "arsenal/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. SerialUnit,
// Reservation and ImportGroup rows are never deleted, so this log plus the
// row state is the full history of every physical unit.
type Event struct {
	ID            string
	Timestamp     time.Time
	Action        string
	ActorID       id.UserID
	Subject       string // serial number, reservation id or import group id
	ImportGroupID string
	Reason        string
	RequestID     string
	Details       map[string]string
}

type AuditEvent string

const (
	EventSerialLoaded   AuditEvent = "serial_loaded"
	EventSerialBound    AuditEvent = "serial_bound"
	EventSerialReleased AuditEvent = "serial_released"
	EventSerialSold     AuditEvent = "serial_sold"

	EventReservationCreated   AuditEvent = "reservation_created"
	EventReservationConfirmed AuditEvent = "reservation_confirmed"
	EventReservationCancelled AuditEvent = "reservation_cancelled"
	EventReservationCompleted AuditEvent = "reservation_completed"

	EventMembershipChanged AuditEvent = "membership_changed"

	EventQuotaAdmitted      AuditEvent = "quota_admitted"
	EventQuotaRejected      AuditEvent = "quota_rejected"
	EventQuotaReleased      AuditEvent = "quota_released"
	EventQuotaLimitsChanged AuditEvent = "quota_limits_changed"

	EventGroupCreated     AuditEvent = "import_group_created"
	EventStageAdvanced    AuditEvent = "stage_advanced"
	EventStageBlocked     AuditEvent = "stage_blocked"
	EventGroupCancelled   AuditEvent = "import_group_cancelled"
	EventPlannedDateSet   AuditEvent = "planned_date_recorded"
	EventArrivalEstimated AuditEvent = "arrival_estimate_recorded"

	EventBulkIntake AuditEvent = "bulk_intake"
)

func (e AuditEvent) String() string { return string(e) }

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
