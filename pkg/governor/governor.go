// Package governor implements the RateGovernor (§4.3): the per-account
// publish budget, combining the platform's authoritative rolling 24h quota
// (cached in Redis, refreshed opportunistically) with the local per-day cap
// already enforced at schedule time by pkg/post.
package governor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ktharrington/Scheduler-Application/pkg/post"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// quotaTTL bounds how long a cached PublishingLimit reading is trusted
// before the next publish attempt forces a remote refresh.
const quotaTTL = 2 * time.Minute

// Quota is the cached shape of a PublishingLimit response (§4.2).
type Quota struct {
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	WindowResetsAt time.Time `json:"window_resets_at"`
}

// Exceeded reports whether the quota is currently exhausted.
func (q Quota) Exceeded() bool {
	return q.Used >= q.Limit
}

// QuotaSource is implemented by the platform client's PublishingLimit call.
type QuotaSource interface {
	PublishingLimit(ctx context.Context, accountID int64) (Quota, error)
}

// Outcome is the result of a Reserve call.
type Outcome int

const (
	Ok Outcome = iota
	ExceedsLocalCap
	ExceedsRemoteQuota
)

// Governor enforces the two budgets of §4.3. Reservations are not
// persistent: they're consulted at publish time only, since the local cap
// is already enforced at schedule time by pkg/post's spacing invariants.
type Governor struct {
	redis  *redis.Client
	source QuotaSource
}

// New creates a Governor.
func New(rdb *redis.Client, source QuotaSource) *Governor {
	return &Governor{redis: rdb, source: source}
}

func cacheKey(accountID int64) string {
	return fmt.Sprintf("governor:quota:%d", accountID)
}

// Reserve checks whether a publish for accountID may proceed now, given the
// caller's count of the account's posts for the day. It returns outcome
// ExceedsRemoteQuota with a *schederr.Error of kind RateLimited when the
// platform's rolling quota is exhausted, and outcome ExceedsLocalCap with a
// schederr.KindConflict error when localNonTerminalCount exceeds DailyCap
// (defense in depth — pkg/post should already have rejected this at create
// time, so this path is only reachable if a post was force-created via
// override_spacing after the cap had already been hit).
func (g *Governor) Reserve(ctx context.Context, accountID int64, localNonTerminalCount int) (Outcome, error) {
	if localNonTerminalCount > post.DailyCap {
		return ExceedsLocalCap, schederr.Conflict("daily_cap_exceeded", "account %d already over the daily cap", accountID)
	}

	quota, err := g.quota(ctx, accountID, false)
	if err != nil {
		return Ok, err
	}
	if quota.Exceeded() {
		retryAfter := time.Until(quota.WindowResetsAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return ExceedsRemoteQuota, schederr.RateLimited(retryAfter)
	}
	return Ok, nil
}

// RefreshOnQuotaError forces a remote refresh, used when the platform
// itself has just returned a quota-exceeded response for a publish call
// that slipped past a stale cached reading (§4.3).
func (g *Governor) RefreshOnQuotaError(ctx context.Context, accountID int64) (Quota, error) {
	return g.quota(ctx, accountID, true)
}

// quota returns the cached quota, refreshing from source if the cache is
// cold, stale, or force is set.
func (g *Governor) quota(ctx context.Context, accountID int64, force bool) (Quota, error) {
	key := cacheKey(accountID)

	if !force {
		raw, err := g.redis.Get(ctx, key).Result()
		if err == nil {
			var q Quota
			if jsonErr := json.Unmarshal([]byte(raw), &q); jsonErr == nil {
				return q, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return Quota{}, schederr.Transient("reading cached quota", err)
		}
	}

	q, err := g.source.PublishingLimit(ctx, accountID)
	if err != nil {
		return Quota{}, err
	}

	encoded, _ := json.Marshal(q)
	if err := g.redis.Set(ctx, key, encoded, quotaTTL).Err(); err != nil {
		return q, schederr.Transient("caching quota", err)
	}
	return q, nil
}
