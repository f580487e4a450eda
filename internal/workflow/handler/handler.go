package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	quotahandler "arsenal/internal/quota/handler"
	quotamodels "arsenal/internal/quota/models"
	"arsenal/internal/workflow/models"
	"arsenal/internal/workflow/service"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

type Service interface {
	CreateGroup(ctx context.Context, p service.CreateGroupParams) (*models.ImportGroup, error)
	Advance(ctx context.Context, groupID id.ImportGroupID, target models.Stage, actor id.UserID) (*models.ImportGroup, error)
	Cancel(ctx context.Context, groupID id.ImportGroupID, actor id.UserID) (*models.ImportGroup, error)
	RecordPlannedDate(ctx context.Context, groupID id.ImportGroupID, stage models.Stage, date time.Time) (*models.ImportGroup, error)
	RecordArrivalEstimate(ctx context.Context, groupID id.ImportGroupID, date time.Time) (*models.ImportGroup, error)
	StageAndAlerts(ctx context.Context, groupID id.ImportGroupID, today time.Time) (*models.StageSummary, error)
	Get(ctx context.Context, groupID id.ImportGroupID) (*models.ImportGroup, error)
	List(ctx context.Context) ([]*models.ImportGroup, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/import-groups", h.HandleCreate)
	r.Get("/import-groups", h.HandleList)
	r.Get("/import-groups/{group_id}", h.HandleGet)
	r.Post("/import-groups/{group_id}/stage", h.HandleAdvance)
	r.Get("/import-groups/{group_id}/stage", h.HandleStageAndAlerts)
	r.Post("/import-groups/{group_id}/cancel", h.HandleCancel)
	r.Put("/import-groups/{group_id}/arrival-estimate", h.HandleArrivalEstimate)
	r.Put("/import-groups/{group_id}/planned-dates", h.HandlePlannedDate)
}

type CreateGroupRequest struct {
	LicenseID string                           `json:"license_id" validate:"required,uuid"`
	Type      string                           `json:"type" validate:"required,oneof=QUOTA JUSTIFICATION"`
	Limits    quotahandler.UpdateLimitsRequest `json:"limits"`
}

type AdvanceRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type ArrivalEstimateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type PlannedDateRequest struct {
	Stage string `json:"stage" validate:"required"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[CreateGroupRequest](w, r, h.logger)
	if !ok {
		return
	}
	licenseID, err := id.ParseLicenseID(req.LicenseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limits, err := req.Limits.Limits()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	g, err := h.service.CreateGroup(ctx, service.CreateGroupParams{
		LicenseID: licenseID,
		Type:      quotamodels.GroupType(req.Type),
		Limits:    limits,
	})
	if err != nil {
		h.logFailure(ctx, "import group create failed", id.ImportGroupID{}, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, g)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"import_groups": groups})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	g, err := h.service.Get(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[AdvanceRequest](w, r, h.logger)
	if !ok {
		return
	}
	target, err := models.ParseStage(req.Stage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	g, err := h.service.Advance(ctx, groupID, target, requestcontext.ActorID(ctx))
	if err != nil {
		h.logFailure(ctx, "stage transition failed", groupID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	g, err := h.service.Cancel(ctx, groupID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logFailure(ctx, "import group cancel failed", groupID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

// HandleStageAndAlerts accepts ?today=YYYY-MM-DD; the request time is used
// otherwise.
func (h *Handler) HandleStageAndAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	today := requestcontext.Now(ctx)
	if raw := r.URL.Query().Get("today"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		today = t
	}
	summary, err := h.service.StageAndAlerts(ctx, groupID, today)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleArrivalEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[ArrivalEstimateRequest](w, r, h.logger)
	if !ok {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	g, err := h.service.RecordArrivalEstimate(ctx, groupID, date)
	if err != nil {
		h.logFailure(ctx, "arrival estimate not recorded", groupID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) HandlePlannedDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID, ok := groupParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[PlannedDateRequest](w, r, h.logger)
	if !ok {
		return
	}
	stage, err := models.ParseStage(req.Stage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	g, err := h.service.RecordPlannedDate(ctx, groupID, stage, date)
	if err != nil {
		h.logFailure(ctx, "planned date not recorded", groupID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func groupParam(w http.ResponseWriter, r *http.Request) (id.ImportGroupID, bool) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ImportGroupID{}, false
	}
	return groupID, true
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "dates use YYYY-MM-DD")
	}
	return t, nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, groupID id.ImportGroupID, err error) {
	args := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	if !groupID.IsNil() {
		args = append(args, "import_group_id", groupID.String())
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.WarnContext(ctx, msg, args...)
		return
	}
	h.logger.InfoContext(ctx, msg, args...)
}
