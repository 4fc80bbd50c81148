package planner

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ktharrington/Scheduler-Application/internal/httpserver"
	"github.com/ktharrington/Scheduler-Application/pkg/post"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Handler provides HTTP handlers for the batch planning workflow (§4.4, §6):
// preflight is a dry run, commit persists the same deterministic result.
type Handler struct {
	logger  *slog.Logger
	planner *Planner
}

// NewHandler creates a planner Handler.
func NewHandler(logger *slog.Logger, planner *Planner) *Handler {
	return &Handler{logger: logger, planner: planner}
}

// Routes mounts the batch preflight/commit endpoints under /api/posts.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/batch_preflight", h.handlePreflight)
	r.Post("/batch/commit", h.handleCommit)
	return r
}

type batchRequest struct {
	AccountID         int64          `json:"account_id" validate:"required"`
	StartDate         time.Time      `json:"start_date" validate:"required"`
	EndDate           time.Time      `json:"end_date" validate:"required"`
	WeeklyPlan        map[string]int `json:"weekly_plan" validate:"required"`
	RandomStartMinute int            `json:"random_start_minute"`
	RandomEndMinute   int            `json:"random_end_minute"`
	MinSpacingMinutes int            `json:"min_spacing_minutes"`
	MediaPool         []mediaItemDTO `json:"media_pool" validate:"required,min=1"`
	VideoMode         string         `json:"video_mode"`
	OverrideSpacing   bool           `json:"override_spacing"`
	AllowCarousel     bool           `json:"allow_carousel"`
	Seed              *int64         `json:"seed"`
}

// mediaItemDTO accepts either a single "url" (photo/reel) or a multi-entry
// "urls" (carousel, when the request's allow_carousel is set); exactly one
// of the two should be set.
type mediaItemDTO struct {
	URL     string   `json:"url"`
	URLs    []string `json:"urls"`
	IsVideo bool     `json:"is_video"`
}

func (m mediaItemDTO) urls() []string {
	if len(m.URLs) > 0 {
		return m.URLs
	}
	if m.URL != "" {
		return []string{m.URL}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func (req batchRequest) toDomainRequest() (Request, error) {
	plan := make(map[time.Weekday]int, len(req.WeeklyPlan))
	for name, n := range req.WeeklyPlan {
		wd, ok := weekdayNames[name]
		if !ok {
			return Request{}, schederr.Validation("unrecognized weekday %q in weekly_plan", name)
		}
		plan[wd] = n
	}

	mode := VideoModeReelFeed
	if req.VideoMode == string(VideoModeReelOnly) {
		mode = VideoModeReelOnly
	}

	pool := make([]MediaItem, len(req.MediaPool))
	for i, m := range req.MediaPool {
		urls := m.urls()
		if len(urls) == 0 {
			return Request{}, schederr.Validation("media_pool[%d] has neither url nor urls set", i)
		}
		pool[i] = MediaItem{URLs: urls, IsVideo: m.IsVideo}
	}

	return Request{
		AccountID:         req.AccountID,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		WeeklyPlan:        plan,
		RandomStart:       time.Duration(req.RandomStartMinute) * time.Minute,
		RandomEnd:         time.Duration(req.RandomEndMinute) * time.Minute,
		MinSpacingMinutes: req.MinSpacingMinutes,
		MediaPool:         pool,
		VideoMode:         mode,
		OverrideSpacing:   req.OverrideSpacing,
		AllowCarousel:     req.AllowCarousel,
		Seed:              req.Seed,
	}, nil
}

type slotDTO struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	LocalDate   string    `json:"local_date"`
	MediaURL    string    `json:"media_url"`
	PostType    post.Type `json:"post_type"`
}

func toSlotDTOs(slots []Slot) []slotDTO {
	out := make([]slotDTO, len(slots))
	for i, s := range slots {
		out[i] = slotDTO{ScheduledAt: s.ScheduledAt, LocalDate: s.LocalDate, MediaURL: s.MediaURL, PostType: s.PostType}
	}
	return out
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}
	domainReq, err := body.toDomainRequest()
	if err != nil {
		h.writeError(w, "decoding batch preflight request", err)
		return
	}

	result, err := h.planner.Preflight(r.Context(), domainReq)
	if err != nil {
		h.writeError(w, "running batch preflight", err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"slots":              toSlotDTOs(result.Slots),
		"conflicts":          result.Conflicts,
		"insufficient_media": result.InsufficientMedia,
		"seed_used":          result.SeedUsed,
	})
}

type commitRequest struct {
	batchRequest
	ClientRequestIDPrefix string `json:"client_request_id_prefix"`
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	var body commitRequest
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}
	domainReq, err := body.toDomainRequest()
	if err != nil {
		h.writeError(w, "decoding batch commit request", err)
		return
	}

	preflight, err := h.planner.Preflight(r.Context(), domainReq)
	if err != nil {
		h.writeError(w, "computing batch slots before commit", err)
		return
	}

	result, err := h.planner.Commit(r.Context(), domainReq, preflight.Slots, body.ClientRequestIDPrefix)
	if err != nil {
		h.logger.Error("committing batch", "account_id", domainReq.AccountID, "created_before_failure", result.Created, "error", err)
		h.writeError(w, "committing batch", err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{
		"created":   result.Created,
		"conflicts": preflight.Conflicts,
	})
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
