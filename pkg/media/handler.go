package media

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ktharrington/Scheduler-Application/internal/httpserver"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Handler provides HTTP handlers for registering media assets that have
// already been uploaded to object storage by the caller (§3): this package
// only records the (account_id, sha256) -> media_url mapping used for
// dedup and later post creation, not the upload itself.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler creates a media Handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// Routes returns a chi.Router with the media routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	r.Get("/{id}", h.handleGet)
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
	default:
		h.logger.Error(op, "error", serr)
		httpserver.RespondError(w, http.StatusInternalServerError, serr.Code, serr.Message)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID  int64  `json:"account_id" validate:"required"`
		StoredPath string `json:"stored_path" validate:"required"`
		MediaURL   string `json:"media_url" validate:"required"`
		Bytes      int64  `json:"bytes" validate:"required"`
		SHA256     string `json:"sha256" validate:"required"`
		ShortHash  string `json:"short_hash"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.ShortHash == "" && len(req.SHA256) >= 8 {
		req.ShortHash = req.SHA256[:8]
	}

	asset, err := h.store.Create(r.Context(), CreateParams{
		AccountID:  req.AccountID,
		StoredPath: req.StoredPath,
		MediaURL:   req.MediaURL,
		Bytes:      req.Bytes,
		SHA256:     req.SHA256,
		ShortHash:  req.ShortHash,
	})
	if err != nil {
		h.writeError(w, "registering media asset", err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, ToResponse(asset))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid or missing account_id")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid media asset id")
		return
	}
	asset, err := h.store.Get(r.Context(), accountID, id)
	if err != nil {
		h.writeError(w, "getting media asset", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, ToResponse(asset))
}
