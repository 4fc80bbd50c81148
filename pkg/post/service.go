package post

import (
	"context"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/media"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Service applies the validation and invariant checks of §3/§4.5 on top of
// the raw Store, and is what the HTTP handlers and Planner call into.
type Service struct {
	store    *Store
	accounts *account.Service
	assets   *media.Store
}

// NewService builds a post Service. assets may be nil in tests that never
// create posts by asset_id.
func NewService(store *Store, accounts *account.Service, assets *media.Store) *Service {
	return &Service{store: store, accounts: accounts, assets: assets}
}

// CreateRequest is the post-create payload (§6).
type CreateRequest struct {
	AccountID       int64
	Platform        string
	PostType        Type
	MediaURL        string
	Caption         string
	ScheduledAt     time.Time
	AssetID         *int64
	ClientRequestID *string
	OverrideSpacing bool
}

// dayWindow returns the [start, end) UTC instants bounding the local
// calendar date that instant falls on on in loc.
func dayWindow(instant time.Time, loc *time.Location) (time.Time, time.Time) {
	local := instant.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// Create validates spacing/cap invariants (unless overridden) and inserts a
// post (§3, §4.1, §4.5).
func (s *Service) Create(ctx context.Context, req CreateRequest) (Post, CreateOutcome, error) {
	if !req.PostType.IsValid() {
		return Post{}, Created, schederr.Validation("invalid post_type %q", req.PostType)
	}
	if req.Platform == "" {
		req.Platform = "instagram"
	}

	acct, err := s.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return Post{}, Created, err
	}

	if req.AssetID != nil && req.MediaURL == "" {
		if s.assets == nil {
			return Post{}, Created, schederr.Validation("asset_id given but no media store is configured")
		}
		asset, err := s.assets.Get(ctx, req.AccountID, *req.AssetID)
		if err != nil {
			return Post{}, Created, err
		}
		req.MediaURL = asset.MediaURL
	}

	caption := req.Caption
	if caption == "" {
		if extracted, ok := ExtractCaption(req.MediaURL); ok {
			caption = extracted
		}
	}

	if !req.OverrideSpacing {
		if err := s.checkInvariants(ctx, acct, req.ScheduledAt, nil); err != nil {
			return Post{}, Created, err
		}
	}

	p, outcome, err := s.store.Create(ctx, CreateParams{
		AccountID:       req.AccountID,
		Platform:        req.Platform,
		PostType:        req.PostType,
		MediaURL:        req.MediaURL,
		Caption:         caption,
		ScheduledAt:     req.ScheduledAt,
		ClientRequestID: req.ClientRequestID,
		AssetID:         req.AssetID,
	})
	return p, outcome, err
}

// checkInvariants enforces the spacing and daily-cap invariants of §3 for a
// candidate instant on acct, optionally excluding a post (for move/edit).
func (s *Service) checkInvariants(ctx context.Context, acct account.Account, candidate time.Time, excludeID *int64) error {
	dayStart, dayEnd := dayWindow(candidate, acct.Location())
	existing, err := s.store.NonTerminalOnDate(ctx, acct.ID, dayStart, dayEnd, excludeID)
	if err != nil {
		return err
	}
	if err := CheckDailyCap(len(existing)); err != nil {
		return err
	}
	return CheckSpacing(candidate, existing)
}

// Query returns posts for an account in [start, end) (§6).
func (s *Service) Query(ctx context.Context, accountID int64, start, end time.Time) ([]Post, error) {
	return s.store.Query(ctx, accountID, start, end)
}

// Get returns a single post.
func (s *Service) Get(ctx context.Context, id int64) (Post, error) {
	return s.store.Get(ctx, id)
}

// MoveRequest is the body of a move operation (§4.5): changing scheduled_at.
type MoveRequest struct {
	ScheduledAt     time.Time
	OverrideSpacing bool
}

// Move changes a post's scheduled_at, re-validating invariants unless
// overridden (§4.5).
func (s *Service) Move(ctx context.Context, id int64, req MoveRequest) (Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Status != StatusScheduled {
		return Post{}, schederr.Conflict("not_editable", "post is not in scheduled status")
	}

	acct, err := s.accounts.Get(ctx, p.AccountID)
	if err != nil {
		return Post{}, err
	}
	if !req.OverrideSpacing {
		if err := s.checkInvariants(ctx, acct, req.ScheduledAt, &id); err != nil {
			return Post{}, err
		}
	}
	return s.store.Edit(ctx, id, EditParams{ScheduledAt: &req.ScheduledAt})
}

// ReplaceRequest is the body of a replace operation (§4.5): swapping media,
// optionally re-extracting a caption from the new URL.
type ReplaceRequest struct {
	MediaURL string
	Caption  *string // if nil, attempt extraction from MediaURL
}

// Replace swaps a scheduled post's media_url, extracting a caption from the
// new URL when the caller didn't supply one (§4.5, §6).
func (s *Service) Replace(ctx context.Context, id int64, req ReplaceRequest) (Post, error) {
	caption := req.Caption
	if caption == nil {
		if extracted, ok := ExtractCaption(req.MediaURL); ok {
			caption = &extracted
		}
	}
	return s.store.Edit(ctx, id, EditParams{MediaURL: &req.MediaURL, Caption: caption})
}

// UpdateRequest is the body of PUT/PATCH /api/posts/{id} (§6): a partial
// post covering move and/or replace in a single round-trip.
type UpdateRequest struct {
	MediaURL        *string
	Caption         *string
	ScheduledAt     *time.Time
	OverrideSpacing bool
}

// Update applies a partial edit, re-validating spacing/cap only when
// ScheduledAt changes (§4.5).
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Status != StatusScheduled {
		return Post{}, schederr.Conflict("not_editable", "post is not in scheduled status")
	}

	edit := EditParams{MediaURL: req.MediaURL, Caption: req.Caption}

	if req.MediaURL != nil && req.Caption == nil {
		if extracted, ok := ExtractCaption(*req.MediaURL); ok {
			edit.Caption = &extracted
		}
	}

	if req.ScheduledAt != nil {
		acct, err := s.accounts.Get(ctx, p.AccountID)
		if err != nil {
			return Post{}, err
		}
		if !req.OverrideSpacing {
			if err := s.checkInvariants(ctx, acct, *req.ScheduledAt, &id); err != nil {
				return Post{}, err
			}
		}
		edit.ScheduledAt = req.ScheduledAt
	}

	return s.store.Edit(ctx, id, edit)
}

// Delete cancels a single post via CAS from any non-terminal status to
// cancelled (§4.6, §4.7, §9's EventCancel), rather than removing the row
// outright: a post the scheduler already leased or is mid-poll must still
// be recognizable as cancelled so the driver can stop driving it instead of
// calling the platform on a post that no longer exists.
func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.store.CAS(ctx, id, []Status{StatusScheduled, StatusLeased, StatusPublishing}, StatusUpdate{
		Status: StatusCancelled,
	})
	return err
}

// BulkDelete removes many posts in one transaction.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	return s.store.BulkDelete(ctx, ids)
}

// DeleteAfter removes scheduled/leased posts after a cutoff (§4.5, §6, §8).
func (s *Service) DeleteAfter(ctx context.Context, accountID int64, after time.Time) (int64, error) {
	return s.store.DeleteAfter(ctx, accountID, after)
}

// ClearOldPosts removes every post scheduled before now for an account (§6).
func (s *Service) ClearOldPosts(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	return s.store.DeleteOld(ctx, accountID, now)
}
