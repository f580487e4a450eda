package documents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/httputil"
)

type Recorder interface {
	SetPresent(ctx context.Context, groupID id.ImportGroupID, present bool) error
	RequiredDocumentsPresent(ctx context.Context, groupID id.ImportGroupID) (bool, error)
}

// Handler exposes the in-memory stand-in. It is only mounted when no
// external document service is configured.
type Handler struct {
	recorder Recorder
	logger   *slog.Logger
}

func NewHandler(recorder Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/import-groups/{group_id}/documents", h.HandleSet)
	r.Get("/import-groups/{group_id}/documents", h.HandleGet)
}

type SetRequest struct {
	Present *bool `json:"present" validate:"required"`
}

func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[SetRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.recorder.SetPresent(r.Context(), groupID, *req.Present); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requiredDocuments{Present: *req.Present})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	present, err := h.recorder.RequiredDocumentsPresent(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requiredDocuments{Present: present})
}
