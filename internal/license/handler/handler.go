package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"arsenal/internal/license/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/httputil"
)

type Service interface {
	Register(ctx context.Context, number string) (*models.License, error)
	Get(ctx context.Context, licenseID id.LicenseID) (*models.License, error)
	List(ctx context.Context) ([]*models.License, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/licenses", h.HandleRegister)
	r.Get("/licenses", h.HandleList)
	r.Get("/licenses/{license_id}", h.HandleGet)
}

type RegisterLicenseRequest struct {
	Number string `json:"number" validate:"required,max=64"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[RegisterLicenseRequest](w, r, h.logger)
	if !ok {
		return
	}
	l, err := h.service.Register(r.Context(), req.Number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"licenses": list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	licenseID, err := id.ParseLicenseID(chi.URLParam(r, "license_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.Get(r.Context(), licenseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}
