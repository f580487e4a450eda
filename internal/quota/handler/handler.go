package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"arsenal/internal/quota/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

type Service interface {
	Remaining(ctx context.Context, groupID id.ImportGroupID) (*models.Remaining, error)
	UpdateLimits(ctx context.Context, groupID id.ImportGroupID, limits models.Limits) (*models.Ledger, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/import-groups/{group_id}/quota", h.HandleRemaining)
	r.Put("/import-groups/{group_id}/quota", h.HandleUpdateLimits)
}

// UpdateLimitsRequest uses string keys so clients send plain JSON objects.
type UpdateLimitsRequest struct {
	Total      *int           `json:"total" validate:"required,min=0"`
	Categories map[string]int `json:"categories,omitempty"`
	Vendors    map[string]int `json:"vendors,omitempty"`
}

func (r *UpdateLimitsRequest) Limits() (models.Limits, error) {
	limits := models.Limits{Total: *r.Total}
	if len(r.Categories) > 0 {
		limits.Categories = make(map[id.QuotaCategory]int, len(r.Categories))
		for raw, v := range r.Categories {
			c, err := id.ParseQuotaCategory(raw)
			if err != nil {
				return models.Limits{}, err
			}
			limits.Categories[c] = v
		}
	}
	if len(r.Vendors) > 0 {
		limits.Vendors = make(map[id.VendorID]int, len(r.Vendors))
		for raw, v := range r.Vendors {
			vendor, err := id.ParseVendorID(raw)
			if err != nil {
				return models.Limits{}, err
			}
			limits.Vendors[vendor] = v
		}
	}
	return limits, nil
}

func (h *Handler) HandleRemaining(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	remaining, err := h.service.Remaining(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, remaining)
}

func (h *Handler) HandleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateLimitsRequest](w, r, h.logger)
	if !ok {
		return
	}
	limits, err := req.Limits()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ledger, err := h.service.UpdateLimits(ctx, groupID, limits)
	if err != nil {
		h.logger.WarnContext(ctx, "quota limit update failed",
			"request_id", requestcontext.RequestID(ctx),
			"import_group_id", groupID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ledger)
}
