package handler

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"arsenal/internal/intake/models"
	"arsenal/internal/intake/parser"
	"arsenal/internal/intake/service"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/httputil"
	"arsenal/pkg/requestcontext"
)

const maxUploadBytes = 16 << 20

type Service interface {
	Ingest(ctx context.Context, p service.IngestParams) (*models.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/intake", h.HandleIngest)
	r.Post("/intake/upload", h.HandleUpload)
}

type IngestRequest struct {
	Rows           []models.Row `json:"rows" validate:"required,max=10000"`
	DefaultModelID string       `json:"default_model_id,omitempty" validate:"omitempty,uuid"`
	ImportGroupID  string       `json:"import_group_id,omitempty" validate:"omitempty,uuid"`
}

func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[IngestRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, err := ingestParams(req.DefaultModelID, req.ImportGroupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	params.Rows = req.Rows
	h.ingest(w, r, params)
}

// HandleUpload accepts a multipart "file" part holding CSV or XLSX, chosen
// by extension. Optional form fields: default_model_id, import_group_id and
// charset (CSV only).
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()

	params, err := ingestParams(r.FormValue("default_model_id"), r.FormValue("import_group_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		params.Rows, err = parser.ParseXLSX(file)
	case ".csv", ".txt", "":
		params.Rows, err = parser.ParseCSV(file, r.FormValue("charset"))
	default:
		err = dErrors.New(dErrors.CodeInvalidInput, "upload must be .csv or .xlsx")
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.ingest(w, r, params)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, params service.IngestParams) {
	ctx := r.Context()
	result, err := h.service.Ingest(ctx, params)
	if err != nil {
		h.logger.WarnContext(ctx, "bulk intake failed",
			"request_id", requestcontext.RequestID(ctx),
			"rows", len(params.Rows),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func ingestParams(rawModel, rawGroup string) (service.IngestParams, error) {
	var p service.IngestParams
	if rawModel != "" {
		modelID, err := id.ParseWeaponModelID(rawModel)
		if err != nil {
			return p, err
		}
		p.DefaultModelID = &modelID
	}
	if rawGroup != "" {
		groupID, err := id.ParseImportGroupID(rawGroup)
		if err != nil {
			return p, err
		}
		p.ImportGroupID = &groupID
	}
	return p, nil
}
