package post

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ktharrington/Scheduler-Application/internal/audit"
	"github.com/ktharrington/Scheduler-Application/internal/httpserver"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Handler provides HTTP handlers for the posts API (§6).
type Handler struct {
	logger  *slog.Logger
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a post Handler. auditWriter may be nil in tests.
func NewHandler(logger *slog.Logger, service *Service, auditWriter *audit.Writer) *Handler {
	return &Handler{logger: logger, service: service, audit: auditWriter}
}

func (h *Handler) logAudit(r *http.Request, action string, postID int64) {
	if h.audit == nil {
		return
	}
	h.audit.LogFromRequest(r, action, nil, &postID, nil)
}

// Routes returns a chi.Router with all post routes mounted. Batch
// preflight/commit are mounted separately by the planner package, which
// owns that workflow end to end.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/query", h.handleQuery)
	r.Post("/", h.handleCreate)
	r.Post("/bulk_delete", h.handleBulkDelete)
	r.Post("/delete_after", h.handleDeleteAfter)
	r.Route("/{id}", func(r chi.Router) {
		r.Put("/", h.handleUpdate)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
	})
	return r
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var serr *schederr.Error
	if !errors.As(err, &serr) {
		h.logger.Error(op, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	switch serr.Kind {
	case schederr.KindValidation:
		httpserver.RespondError(w, http.StatusBadRequest, serr.Code, serr.Message)
	case schederr.KindNotFound:
		httpserver.RespondError(w, http.StatusNotFound, serr.Code, serr.Message)
	case schederr.KindConflict:
		httpserver.RespondError(w, http.StatusConflict, serr.Code, serr.Message)
	case schederr.KindSpacingConflict:
		httpserver.Respond(w, http.StatusConflict, spacingConflictResponse(serr))
	case schederr.KindRateLimited:
		httpserver.RespondRateLimited(w, int64(serr.RetryAfter.Seconds()))
	case schederr.KindTerminal:
		httpserver.RespondError(w, http.StatusUnprocessableEntity, serr.Code, serr.Message)
	default:
		h.logger.Error(op, "error", serr)
		httpserver.RespondError(w, http.StatusInternalServerError, serr.Code, serr.Message)
	}
}

// spacingConflictResponse is the 409 body for a SpacingConflict (§7): it
// carries the offending neighbor times so the caller can retry with
// override_spacing if desired.
func spacingConflictResponse(serr *schederr.Error) any {
	return struct {
		Error     string      `json:"error"`
		Message   string      `json:"message"`
		Neighbors []time.Time `json:"neighbors"`
	}{Error: serr.Code, Message: serr.Message, Neighbors: serr.Neighbors}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid post id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid or missing account_id")
		return
	}
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid or missing start")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid or missing end")
		return
	}

	posts, err := h.service.Query(r.Context(), accountID, start, end)
	if err != nil {
		h.writeError(w, "querying posts", err)
		return
	}
	resp := make([]Response, len(posts))
	for i, p := range posts {
		resp[i] = ToResponse(p)
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"items": resp})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID       int64      `json:"account_id" validate:"required"`
		Platform        string     `json:"platform"`
		PostType        Type       `json:"post_type" validate:"required"`
		MediaURL        string     `json:"media_url" validate:"required"`
		Caption         string     `json:"caption"`
		ScheduledAt     time.Time  `json:"scheduled_at" validate:"required"`
		AssetID         *int64     `json:"asset_id"`
		ClientRequestID *string    `json:"client_request_id"`
		OverrideSpacing bool       `json:"override_spacing"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, _, err := h.service.Create(r.Context(), CreateRequest{
		AccountID:       req.AccountID,
		Platform:        req.Platform,
		PostType:        req.PostType,
		MediaURL:        req.MediaURL,
		Caption:         req.Caption,
		ScheduledAt:     req.ScheduledAt,
		AssetID:         req.AssetID,
		ClientRequestID: req.ClientRequestID,
		OverrideSpacing: req.OverrideSpacing,
	})
	if err != nil {
		h.writeError(w, "creating post", err)
		return
	}
	h.logAudit(r, "post.created", p.ID)
	httpserver.Respond(w, http.StatusCreated, map[string]any{"id": p.ID, "status": p.Status})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		MediaURL        *string    `json:"media_url"`
		Caption         *string    `json:"caption"`
		ScheduledAt     *time.Time `json:"scheduled_at"`
		OverrideSpacing bool       `json:"override_spacing"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), id, UpdateRequest{
		MediaURL:        req.MediaURL,
		Caption:         req.Caption,
		ScheduledAt:     req.ScheduledAt,
		OverrideSpacing: req.OverrideSpacing,
	})
	if err != nil {
		h.writeError(w, "updating post", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, ToResponse(p))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, "deleting post", err)
		return
	}
	h.logAudit(r, "post.cancelled", id)
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids" validate:"required,min=1"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, "bulk deleting posts", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) handleDeleteAfter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64     `json:"account_id" validate:"required"`
		After     time.Time `json:"after" validate:"required"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.service.DeleteAfter(r.Context(), req.AccountID, req.After)
	if err != nil {
		h.writeError(w, "deleting posts after cutoff", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]int64{"deleted": n})
}
