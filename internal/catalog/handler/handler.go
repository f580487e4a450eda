package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"arsenal/internal/catalog/models"
	id "arsenal/pkg/domain"
	"arsenal/pkg/platform/httputil"
)

type Service interface {
	Register(ctx context.Context, code, name, caliber string, category id.QuotaCategory, price decimal.Decimal) (*models.WeaponModel, error)
	List(ctx context.Context) ([]*models.WeaponModel, error)
	FindByCode(ctx context.Context, code string) (*models.WeaponModel, error)
	SetClientCategory(ctx context.Context, clientID id.ClientID, category id.QuotaCategory) error
	Category(ctx context.Context, clientID id.ClientID) (id.QuotaCategory, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/catalog/models", h.HandleRegister)
	r.Get("/catalog/models", h.HandleList)
	r.Get("/catalog/models/{code}", h.HandleGet)
	r.Put("/clients/{client_id}/category", h.HandleSetCategory)
	r.Get("/clients/{client_id}/category", h.HandleGetCategory)
}

type RegisterModelRequest struct {
	Code           string `json:"code" validate:"required,max=64"`
	Name           string `json:"name" validate:"required"`
	Caliber        string `json:"caliber"`
	Category       string `json:"category" validate:"required"`
	ReferencePrice string `json:"reference_price" validate:"required,numeric"`
}

type CategoryRequest struct {
	Category string `json:"category" validate:"required"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[RegisterModelRequest](w, r, h.logger)
	if !ok {
		return
	}
	category, err := id.ParseQuotaCategory(req.Category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	price, err := decimal.NewFromString(req.ReferencePrice)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Register(r.Context(), req.Code, req.Name, req.Caliber, category, price)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"models": list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleSetCategory(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(chi.URLParam(r, "client_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[CategoryRequest](w, r, h.logger)
	if !ok {
		return
	}
	category, err := id.ParseQuotaCategory(req.Category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetClientCategory(r.Context(), clientID, category); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"client_id": clientID.String(), "category": category.String()})
}

func (h *Handler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	clientID, err := id.ParseClientID(chi.URLParam(r, "client_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	category, err := h.service.Category(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"client_id": clientID.String(), "category": category.String()})
}
