// Package audit exposes the persisted audit trail to operators.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "arsenal/pkg/domain-errors"
	audit "arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/httputil"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

// Reader is satisfied by every audit.Store.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Handler struct {
	reader Reader
	logger *slog.Logger
}

func NewHandler(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
}

type EventResponse struct {
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

// HandleList returns the history of ?subject= (a serial, reservation or
// import group id), or the most recent events when no subject is given.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		events []audit.Event
		err    error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		events, err = h.reader.ListBySubject(ctx, subject)
	} else {
		limit, perr := parseLimit(r.URL.Query().Get("limit"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		events, err = h.reader.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read audit events", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit events"))
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp := EventResponse{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Action:        e.Action,
			Subject:       e.Subject,
			ImportGroupID: e.ImportGroupID,
			Reason:        e.Reason,
			RequestID:     e.RequestID,
			Details:       e.Details,
		}
		if !e.ActorID.IsNil() {
			resp.ActorID = e.ActorID.String()
		}
		out = append(out, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultRecent, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return min(n, maxRecent), nil
}
