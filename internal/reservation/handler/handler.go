package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"arsenal/internal/reservation/models"
	"arsenal/internal/reservation/service"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, p service.CreateParams) (*models.Reservation, error)
	Get(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	Confirm(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	Cancel(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	BindNextSerial(ctx context.Context, resID id.ReservationID, serial string, assignor id.UserID) (*service.BindResult, error)
	Recompute(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	ListByGroup(ctx context.Context, groupID id.ImportGroupID) ([]*models.Reservation, error)
	AddMember(ctx context.Context, groupID id.ImportGroupID, clientID id.ClientID) (*models.Membership, error)
	ListMembers(ctx context.Context, groupID id.ImportGroupID) ([]*models.Membership, error)
	Approve(ctx context.Context, mID id.MembershipID) (*models.Membership, error)
	ConfirmMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error)
	CompleteMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error)
	CancelMember(ctx context.Context, mID id.MembershipID) (*models.Membership, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/reservations", h.HandleCreate)
	r.Get("/reservations/{reservation_id}", h.reservationAction(h.service.Get))
	r.Post("/reservations/{reservation_id}/confirm", h.reservationAction(h.service.Confirm))
	r.Post("/reservations/{reservation_id}/cancel", h.reservationAction(h.service.Cancel))
	r.Post("/reservations/{reservation_id}/recompute", h.reservationAction(h.service.Recompute))
	r.Post("/reservations/{reservation_id}/serials", h.HandleBindSerial)
	r.Get("/import-groups/{group_id}/reservations", h.HandleListByGroup)

	r.Post("/import-groups/{group_id}/members", h.HandleAddMember)
	r.Get("/import-groups/{group_id}/members", h.HandleListMembers)
	r.Post("/memberships/{membership_id}/approve", h.membershipAction(h.service.Approve))
	r.Post("/memberships/{membership_id}/confirm", h.membershipAction(h.service.ConfirmMember))
	r.Post("/memberships/{membership_id}/complete", h.membershipAction(h.service.CompleteMember))
	r.Post("/memberships/{membership_id}/cancel", h.membershipAction(h.service.CancelMember))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[CreateReservationRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, err := req.Params()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Create(ctx, params)
	if err != nil {
		h.logFailure(ctx, "reservation create failed", err, "import_group_id", req.ImportGroupID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleBindSerial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resID, err := id.ParseReservationID(chi.URLParam(r, "reservation_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[BindSerialRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.service.BindNextSerial(ctx, resID, req.Serial, requestcontext.ActorID(ctx))
	if err != nil {
		h.logFailure(ctx, "serial bind failed", err, "reservation_id", resID.String(), "serial", req.Serial)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByGroup(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[AddMemberRequest](w, r, h.logger)
	if !ok {
		return
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.AddMember(r.Context(), groupID, clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseImportGroupID(chi.URLParam(r, "group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListMembers(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"memberships": list})
}

func (h *Handler) reservationAction(fn func(context.Context, id.ReservationID) (*models.Reservation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resID, err := id.ParseReservationID(chi.URLParam(r, "reservation_id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		res, err := fn(r.Context(), resID)
		if err != nil {
			h.logFailure(r.Context(), "reservation operation failed", err, "reservation_id", resID.String(), "path", r.URL.Path)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) membershipAction(fn func(context.Context, id.MembershipID) (*models.Membership, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mID, err := id.ParseMembershipID(chi.URLParam(r, "membership_id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		m, err := fn(r.Context(), mID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, m)
	}
}

// logFailure logs expected domain rejections at INFO and everything else at
// WARN.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	if h.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, args...)
		return
	}
	h.logger.InfoContext(ctx, msg, args...)
}
