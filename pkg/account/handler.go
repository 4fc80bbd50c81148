package account

import (
	"context"
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

// OldPostClearer is the slice of pkg/post's Service that clear_old_posts
// needs, declared here (rather than importing pkg/post, which already
// imports this package) so *post.Service satisfies it without either
// package depending on the other.
type OldPostClearer interface {
	ClearOldPosts(ctx context.Context, accountID int64, now time.Time) (int64, error)
}

// Handler provides HTTP handlers for the accounts API (§6).
type Handler struct {
	logger  *slog.Logger
	service *Service
	posts   OldPostClearer
	audit   *audit.Writer
}

// NewHandler creates an account Handler. posts may be nil in tests that
// never exercise clear_old_posts; auditWriter may be nil in tests too.
func NewHandler(logger *slog.Logger, service *Service, posts OldPostClearer, auditWriter *audit.Writer) *Handler {
	return &Handler{logger: logger, service: service, posts: posts, audit: auditWriter}
}

func (h *Handler) logAudit(r *http.Request, action string, accountID int64) {
	if h.audit == nil {
		return
	}
	h.audit.LogFromRequest(r, action, &accountID, nil, nil)
}

// Routes returns a chi.Router with all account routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/refresh", h.handleRefresh) // account_id comes from the JSON body, see handleRefresh
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/freeze", h.handleFreeze)
		r.Post("/unfreeze", h.handleUnfreeze)
		r.Post("/clear_old_posts", h.handleClearOldPosts)
	})
	return r
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid account id")
		return 0, false
	}
	return id, true
}

// writeError maps a classified schederr.Error to its HTTP status (§7).
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
	case schederr.KindConflict, schederr.KindSpacingConflict:
		httpserver.RespondError(w, http.StatusConflict, serr.Code, serr.Message)
	case schederr.KindRateLimited:
		httpserver.RespondRateLimited(w, int64(serr.RetryAfter.Seconds()))
	case schederr.KindTerminal:
		httpserver.RespondError(w, http.StatusUnprocessableEntity, serr.Code, serr.Message)
	default:
		h.logger.Error(op, "error", serr)
		httpserver.RespondError(w, http.StatusInternalServerError, serr.Code, serr.Message)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlatformUserID string `json:"platform_user_id" validate:"required"`
		Handle         string `json:"handle" validate:"required"`
		Token          string `json:"token" validate:"required"`
		Timezone       string `json:"timezone" validate:"required"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.service.Create(r.Context(), CreateParams{
		PlatformUserID: req.PlatformUserID,
		Handle:         req.Handle,
		Timezone:       req.Timezone,
		AccessToken:    tokenFromString(req.Token),
	})
	if err != nil {
		h.writeError(w, "creating account", err)
		return
	}
	h.logAudit(r, "account.created", a.ID)
	httpserver.Respond(w, http.StatusCreated, ToResponse(a))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, "listing accounts", err)
		return
	}
	resp := make([]Response, len(accounts))
	for i, a := range accounts {
		resp[i] = ToResponse(a)
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"accounts": resp, "count": len(resp)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "getting account", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, ToResponse(a))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64 `json:"account_id" validate:"required"`
		RefreshRequest
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	a, err := h.service.Refresh(r.Context(), req.AccountID, req.RefreshRequest)
	if err != nil {
		h.writeError(w, "refreshing account", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, ToResponse(a))
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Freeze(r.Context(), id)
	if err != nil {
		h.writeError(w, "freezing account", err)
		return
	}
	h.logAudit(r, "account.frozen", a.ID)
	httpserver.Respond(w, http.StatusOK, ToResponse(a))
}

func (h *Handler) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Unfreeze(r.Context(), id)
	if err != nil {
		h.writeError(w, "unfreezing account", err)
		return
	}
	h.logAudit(r, "account.unfrozen", a.ID)
	httpserver.Respond(w, http.StatusOK, ToResponse(a))
}

// handleClearOldPosts removes every post scheduled before now for the
// account (§6).
func (h *Handler) handleClearOldPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if h.posts == nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "clear_old_posts is not configured")
		return
	}
	n, err := h.posts.ClearOldPosts(r.Context(), id, time.Now())
	if err != nil {
		h.writeError(w, "clearing old posts", err)
		return
	}
	h.logAudit(r, "account.cleared_old_posts", id)
	httpserver.Respond(w, http.StatusOK, map[string]any{"deleted": n})
}
