package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "arsenal/pkg/domain"
	audit "arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Appends join the caller's transaction, so an event exists exactly when the
// mutation it describes committed. The relay publishes rows to Kafka.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Payload is the JSON document stored in the outbox and published to Kafka.
type Payload struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Action        string            `json:"action"`
	ActorID       string            `json:"actor_id,omitempty"`
	Subject       string            `json:"subject"`
	ImportGroupID string            `json:"import_group_id,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

func toPayload(event audit.Event) Payload {
	p := Payload{
		ID:            event.ID,
		Timestamp:     event.Timestamp,
		Action:        event.Action,
		Subject:       event.Subject,
		ImportGroupID: event.ImportGroupID,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
		Details:       event.Details,
	}
	if !event.ActorID.IsNil() {
		p.ActorID = event.ActorID.String()
	}
	return p
}

func fromPayload(p Payload) audit.Event {
	event := audit.Event{
		ID:            p.ID,
		Timestamp:     p.Timestamp,
		Action:        p.Action,
		Subject:       p.Subject,
		ImportGroupID: p.ImportGroupID,
		Reason:        p.Reason,
		RequestID:     p.RequestID,
		Details:       p.Details,
	}
	if actor, err := id.ParseUserID(p.ActorID); err == nil {
		event.ActorID = actor
	}
	return event
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
		event.ID = eventID.String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, action, subject, import_group_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Use(ctx, s.db).ExecContext(ctx, query,
		eventID,
		event.Action,
		event.Subject,
		event.ImportGroupID,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns the subject's history, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `SELECT payload FROM audit_outbox WHERE subject = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `SELECT payload FROM audit_outbox ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// Pending is an outbox row waiting to be relayed.
type Pending struct {
	ID      uuid.UUID
	Key     string
	Payload []byte
}

// ClaimPending locks up to limit unpublished rows and hands them to publish.
// Rows are marked published only if publish succeeds; concurrent relays skip
// rows another relay holds.
func (s *Store) ClaimPending(ctx context.Context, limit int, publish func(ctx context.Context, rows []Pending) error) (int, error) {
	var claimed int
	err := tx.NewPostgres(s.db).RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Use(ctx, s.db)
		rows, err := q.QueryContext(ctx, `
			SELECT id, subject, payload FROM audit_outbox
			WHERE published_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("select pending outbox rows: %w", err)
		}
		var pending []Pending
		for rows.Next() {
			var p Pending
			if err := rows.Scan(&p.ID, &p.Key, &p.Payload); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox row: %w", err)
			}
			pending = append(pending, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox rows: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		if err := publish(ctx, pending); err != nil {
			return err
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID.String()
		}
		if _, err := q.ExecContext(ctx, `UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
			return fmt.Errorf("mark outbox rows published: %w", err)
		}
		claimed = len(pending)
		return nil
	})
	return claimed, err
}

func scanPayloads(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, fromPayload(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
