package account

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// PostFailer is the slice of pkg/post's Store that Freeze needs: a bulk CAS
// that fails every non-terminal post for an account in one statement. It is
// declared here (rather than importing pkg/post, which already imports this
// package) so *post.Store satisfies it without either package depending on
// the other.
type PostFailer interface {
	FailAllNonTerminal(ctx context.Context, accountID int64, errorCode string) (int64, error)
}

// Service wraps the Store with the validation and side effects the API
// layer needs (§6): timezone validation, and the freeze/unfreeze toggles
// that the scheduler's Driver consults before publishing a leased post.
type Service struct {
	store *Store
	posts PostFailer
}

// NewService builds an account Service over the given Store. posts may be
// nil in tests that never exercise Freeze's bulk-fail side effect.
func NewService(store *Store, posts PostFailer) *Service {
	return &Service{store: store, posts: posts}
}

// Get returns the account with the given ID.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.store.Get(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.store.List(ctx)
}

// Create onboards a new account after validating its IANA timezone.
func (s *Service) Create(ctx context.Context, p CreateParams) (Account, error) {
	if p.Handle == "" {
		return Account{}, schederr.Validation("handle is required")
	}
	if p.PlatformUserID == "" {
		return Account{}, schederr.Validation("platform_user_id is required")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return Account{}, schederr.Validation("invalid timezone %q: %v", p.Timezone, err)
	}
	return s.store.Create(ctx, p)
}

// Refresh rotates the stored access token and/or timezone.
func (s *Service) Refresh(ctx context.Context, id int64, req RefreshRequest) (Account, error) {
	var tz *string
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return Account{}, schederr.Validation("invalid timezone %q: %v", req.Timezone, err)
		}
		tz = &req.Timezone
	}
	var token *string
	if req.Token != "" {
		token = &req.Token
	}
	return s.store.UpdateToken(ctx, id, token, tz)
}

// Freeze marks an account inactive and fails every non-terminal post for it
// within the same call, not just future lease attempts (§6, §8): a post
// already leased or publishing gets the same treatment a worker would give
// it on its next step, rather than being left to a driver that may not run
// again for a while.
func (s *Service) Freeze(ctx context.Context, id int64) (Account, error) {
	a, err := s.store.SetActive(ctx, id, false)
	if err != nil {
		return Account{}, err
	}
	if s.posts != nil {
		if _, err := s.posts.FailAllNonTerminal(ctx, id, "account_frozen"); err != nil {
			return Account{}, err
		}
	}
	return a, nil
}

// Unfreeze marks an account active again.
func (s *Service) Unfreeze(ctx context.Context, id int64) (Account, error) {
	return s.store.SetActive(ctx, id, true)
}

// tokenFromString wraps a raw bearer token string as an oauth2.Token. Token
// acquisition itself is out of scope (§3); this module only stores and
// rotates whatever opaque token the caller supplies.
func tokenFromString(raw string) oauth2.Token {
	return oauth2.Token{AccessToken: raw}
}

// AccessToken returns the oauth2.Token currently on file for an account, for
// use by the platform client when making outbound calls.
func (s *Service) AccessToken(ctx context.Context, id int64) (oauth2.Token, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return oauth2.Token{}, err
	}
	return a.AccessToken, nil
}
