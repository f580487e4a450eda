package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"arsenal/internal/inventory/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

type Service interface {
	LoadUnit(ctx context.Context, serial string, modelID id.WeaponModelID, groupID *id.ImportGroupID) (*models.SerialUnit, error)
	Get(ctx context.Context, serial string) (*models.SerialUnit, error)
	Release(ctx context.Context, serial string) (*models.SerialUnit, error)
	ListAvailable(ctx context.Context, modelID id.WeaponModelID, groupID *id.ImportGroupID) ([]*models.SerialUnit, error)
	StatsByModel(ctx context.Context) (map[id.WeaponModelID]models.StateCounts, error)
}

// Handler exposes serial unit reads and single-unit loads. Binding and sale
// go through the reservation ledger and payment events.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/inventory/units", h.HandleLoad)
	r.Get("/inventory/units/{serial}", h.HandleGet)
	r.Post("/inventory/units/{serial}/release", h.HandleRelease)
	r.Get("/inventory/available", h.HandleListAvailable)
	r.Get("/inventory/stats", h.HandleStats)
}

func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[LoadUnitRequest](w, r, h.logger)
	if !ok {
		return
	}
	modelID, groupID, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	unit, err := h.service.LoadUnit(ctx, req.Serial, modelID, groupID)
	if err != nil {
		h.logger.WarnContext(ctx, "serial load failed",
			"request_id", requestcontext.RequestID(ctx),
			"serial", req.Serial,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, unit)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.Get(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.Release(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleListAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	modelID, err := id.ParseWeaponModelID(q.Get("weapon_model_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	groupID, err := optionalGroup(q.Get("import_group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	units, err := h.service.ListAvailable(r.Context(), modelID, groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if units == nil {
		units = []*models.SerialUnit{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"units": units, "count": len(units)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.StatsByModel(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string]models.StateCounts, len(stats))
	for modelID, c := range stats {
		out[modelID.String()] = c
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"models": out})
}
