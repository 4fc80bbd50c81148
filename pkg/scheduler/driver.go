package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ktharrington/Scheduler-Application/internal/audit"
	"github.com/ktharrington/Scheduler-Application/internal/clock"
	"github.com/ktharrington/Scheduler-Application/internal/telemetry"
	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/governor"
	"github.com/ktharrington/Scheduler-Application/pkg/platformclient"
	"github.com/ktharrington/Scheduler-Application/pkg/post"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// pollInitialBackoff, pollBackoffFactor, pollBackoffCap, and pollMaxWait
// implement the poll loop's exponential backoff (§4.7 step 3).
const (
	pollInitialBackoff = 2 * time.Second
	pollBackoffFactor  = 2
	pollBackoffCap     = 30 * time.Second
	pollMaxWait        = 5 * time.Minute
)

// DefaultMaxRetries is the retry bound NewDriver uses when given none: how
// many times a transient failure sends a post back to scheduled before it is
// marked permanently failed (§4.7, §7).
const DefaultMaxRetries = 5

// Driver drives a single leased post through the publish FSM (§4.7): it is
// the glue between the pure FSM transitions in pkg/post, the account and
// rate-governor policy checks, and the platform client's I/O.
type Driver struct {
	store      *post.Store
	accounts   *account.Service
	governor   *governor.Governor
	platform   platformclient.Client
	logger     *slog.Logger
	audit      *audit.Writer
	clock      clock.Clock
	maxRetries int
}

// NewDriver creates a Driver. auditWriter may be nil in tests.
func NewDriver(store *post.Store, accounts *account.Service, gov *governor.Governor, platform platformclient.Client, logger *slog.Logger, auditWriter *audit.Writer, maxRetries int) *Driver {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Driver{store: store, accounts: accounts, governor: gov, platform: platform, logger: logger, audit: auditWriter, clock: clock.Real{}, maxRetries: maxRetries}
}

// WithClock overrides the Driver's time source, for deterministic tests of
// the poll-deadline and backoff math (§8).
func (d *Driver) WithClock(c clock.Clock) *Driver {
	d.clock = c
	return d
}

func (d *Driver) logAudit(action string, p post.Post) {
	if d.audit == nil {
		return
	}
	postID := p.ID
	d.audit.LogFromScheduler(action, &p.AccountID, &postID, nil)
}

// Drive runs one post, currently in leased or publishing status, to its
// next resting state: posted, failed, or back to scheduled for retry.
func (d *Driver) Drive(ctx context.Context, postID int64) {
	p, err := d.store.Get(ctx, postID)
	if err != nil {
		d.logger.Error("driver: loading post", "post_id", postID, "error", err)
		return
	}
	if p.Status.IsTerminal() {
		return // cancelled out from under us between lease and dispatch (§5)
	}

	acct, err := d.accounts.Get(ctx, p.AccountID)
	if err != nil {
		d.logger.Error("driver: loading account", "post_id", postID, "error", err)
		return
	}

	if !acct.Active {
		d.failAccountFrozen(ctx, p)
		return
	}

	switch p.Status {
	case post.StatusLeased:
		d.driveLeased(ctx, p, acct)
	case post.StatusPublishing:
		d.drivePublishing(ctx, p, acct)
	}
}

// stillLive reports whether p's persisted status is still non-terminal, so
// a driver resuming after a potentially slow call (governor reserve,
// container creation, a poll tick) can tell whether a concurrent DELETE
// already cancelled the post out from under it. Every external platform
// call site rechecks this instead of relying only on the CAS at the end of
// the step (§4.6, §4.7, §9's EventCancel).
func (d *Driver) stillLive(ctx context.Context, postID int64) bool {
	cur, err := d.store.Get(ctx, postID)
	if err != nil {
		return true // can't tell; the next CAS in line is still the final word
	}
	return !cur.Status.IsTerminal()
}

func (d *Driver) failAccountFrozen(ctx context.Context, p post.Post) {
	code := "account_frozen"
	if _, err := d.store.CAS(ctx, p.ID, []post.Status{post.StatusLeased, post.StatusPublishing}, post.StatusUpdate{
		Status:    post.StatusFailed,
		ErrorCode: &code,
	}); err != nil {
		d.logger.Warn("driver: failing post for frozen account raced with a concurrent change", "post_id", p.ID, "error", err)
	}
}

// driveLeased runs step 1 (governor check) and step 2 (CreateContainer),
// unless a container_id already exists from a crashed prior attempt, in
// which case it resumes directly at the poll step (§4.7 idempotency, §8).
func (d *Driver) driveLeased(ctx context.Context, p post.Post, acct account.Account) {
	if containerID := p.ContainerID(); containerID != "" {
		d.pollAndPublish(ctx, p, acct, containerID)
		return
	}

	outcome, err := d.governor.Reserve(ctx, acct.ID, 0)
	if err != nil {
		var serr *schederr.Error
		if errors.As(err, &serr) && serr.Kind == schederr.KindRateLimited {
			telemetry.QuotaRejectionsTotal.WithLabelValues("remote_quota").Inc()
			d.requeue(ctx, p, serr.RetryAfter, false)
			return
		}
		d.handleFailure(ctx, p, err)
		return
	}
	if outcome != governor.Ok {
		d.requeue(ctx, p, time.Minute, false)
		return
	}

	if !d.stillLive(ctx, p.ID) {
		d.logger.Info("driver: post cancelled before container creation", "post_id", p.ID)
		return
	}

	containerID, err := d.createContainers(ctx, acct, p)
	if err != nil {
		d.handleFailure(ctx, p, err)
		return
	}

	result := withContainerIDJSON(p.PublishResult, containerID)
	updated, err := d.store.CAS(ctx, p.ID, []post.Status{post.StatusLeased}, post.StatusUpdate{
		Status:        post.StatusPublishing,
		PublishResult: result,
		LockedAt:      p.LockedAt,
	})
	if err != nil {
		d.logger.Warn("driver: post cancelled concurrently before container persisted", "post_id", p.ID, "error", err)
		return
	}

	d.pollAndPublish(ctx, updated, acct, containerID)
}

// createContainers stages the post's media, creating carousel children
// first and then the parent, per §4.7 step 2.
func (d *Driver) createContainers(ctx context.Context, acct account.Account, p post.Post) (string, error) {
	if p.PostType != post.TypeCarousel {
		return d.platform.CreateContainer(ctx, acct, platformclient.CreateContainerRequest{
			MediaURL: p.MediaURL,
			Caption:  p.Caption,
			IsVideo:  p.PostType == post.TypeReelFeed || p.PostType == post.TypeReelOnly,
			IsReel:   p.PostType == post.TypeReelOnly,
		})
	}

	env, ok := post.ParseCarouselEnvelope(p.MediaURL)
	if !ok {
		return "", schederr.Terminal("bad_carousel_envelope", "media_url is not a valid carousel envelope")
	}

	childIDs := make([]string, 0, len(env.URLs))
	for _, url := range env.URLs {
		childID, err := d.platform.CreateCarouselChild(ctx, acct, url)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, childID)
	}
	return d.platform.CreateCarouselParent(ctx, acct, childIDs, p.Caption)
}

// drivePublishing resumes an in-flight post at the poll step using the
// container_id already persisted in publish_result.
func (d *Driver) drivePublishing(ctx context.Context, p post.Post, acct account.Account) {
	containerID := p.ContainerID()
	if containerID == "" {
		d.handleFailure(ctx, p, schederr.Terminal("missing_container", "publishing post has no container_id on file"))
		return
	}
	d.pollAndPublish(ctx, p, acct, containerID)
}

// pollAndPublish implements §4.7 steps 3-4: poll ContainerStatus with
// exponential backoff until FINISHED (or ERROR/EXPIRED/timeout), then call
// Publish and record the result.
func (d *Driver) pollAndPublish(ctx context.Context, p post.Post, acct account.Account, containerID string) {
	deadline := d.clock.Now().Add(pollMaxWait)
	backoff := pollInitialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !d.stillLive(ctx, p.ID) {
			d.logger.Info("driver: post cancelled mid-poll", "post_id", p.ID)
			return
		}

		state, err := d.platform.ContainerStatus(ctx, acct, containerID)
		if err != nil {
			d.handleFailure(ctx, p, err)
			return
		}

		switch state {
		case platformclient.StateFinished:
			d.publish(ctx, p, acct, containerID)
			return
		case platformclient.StateInProgress:
			if d.clock.Now().After(deadline) {
				d.handleFailure(ctx, p, schederr.Transient("container stayed IN_PROGRESS past the poll deadline", nil))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= pollBackoffFactor
			if backoff > pollBackoffCap {
				backoff = pollBackoffCap
			}
		default:
			// Any other state. ERROR and EXPIRED come back from ContainerStatus
			// as classified errors and are handled above.
			d.handleFailure(ctx, p, schederr.Terminal("unexpected_container_state", "unexpected container state %q", string(state)))
			return
		}
	}
}

func (d *Driver) publish(ctx context.Context, p post.Post, acct account.Account, containerID string) {
	if !d.stillLive(ctx, p.ID) {
		d.logger.Info("driver: post cancelled before publish", "post_id", p.ID)
		return
	}

	mediaID, err := d.platform.Publish(ctx, acct, containerID)
	if err != nil {
		d.handleFailure(ctx, p, err)
		return
	}

	result := withPlatformMediaIDJSON(p.PublishResult, mediaID)
	if _, err := d.store.CAS(ctx, p.ID, []post.Status{post.StatusPublishing}, post.StatusUpdate{
		Status:        post.StatusPosted,
		PublishResult: result,
	}); err != nil {
		d.logger.Warn("driver: post cancelled concurrently after publish succeeded", "post_id", p.ID, "error", err)
		return
	}
	telemetry.PostsPublishedTotal.WithLabelValues(p.Platform).Inc()
	d.logAudit("post.published", p)
}

// handleFailure classifies err and either requeues the post for retry
// (transient, budget remaining) or marks it permanently failed (§4.7 step
// 5-6, §7).
func (d *Driver) handleFailure(ctx context.Context, p post.Post, err error) {
	var serr *schederr.Error
	retryable := errors.As(err, &serr) && serr.Kind == schederr.KindTransient
	code := classificationCode(serr)

	if retryable && p.RetryCount < d.maxRetries {
		delay := backoffForRetry(p.RetryCount)
		d.requeue(ctx, p, delay, true)
		return
	}

	if _, err := d.store.CAS(ctx, p.ID, []post.Status{post.StatusLeased, post.StatusPublishing}, post.StatusUpdate{
		Status:    post.StatusFailed,
		ErrorCode: &code,
	}); err != nil {
		d.logger.Warn("driver: post cancelled concurrently before failure recorded", "post_id", p.ID, "error", err)
		return
	}
	telemetry.PostsFailedTotal.WithLabelValues(code).Inc()
	d.logAudit("post.failed", p)
}

func classificationCode(serr *schederr.Error) string {
	if serr == nil {
		return "internal_error"
	}
	return serr.Code
}

// requeue returns a post to scheduled with retry_count incremented and
// scheduled_at pushed forward by at least delay (§4.7 steps 1 and 5). The
// jitter keeps many simultaneously-retried posts from re-colliding on the
// next tick.
func (d *Driver) requeue(ctx context.Context, p post.Post, delay time.Duration, incrementRetry bool) {
	jittered := delay + time.Duration(rand.Int63n(int64(delay/4+1)))
	next := p.ScheduledAt
	if candidate := d.clock.Now().Add(jittered); candidate.After(next) {
		next = candidate
	}

	if _, err := d.store.CAS(ctx, p.ID, []post.Status{post.StatusLeased, post.StatusPublishing}, post.StatusUpdate{
		Status:         post.StatusScheduled,
		IncrementRetry: incrementRetry,
		RescheduleTo:   &next,
		LockedAt:       nil,
	}); err != nil {
		d.logger.Warn("driver: post cancelled concurrently before requeue", "post_id", p.ID, "error", err)
	}
}

// backoffForRetry computes the exponential delay added to scheduled_at on a
// transient retry (§7): base 30s doubling per attempt, capped at 30 minutes.
// requeue adds the jitter on top.
func backoffForRetry(retryCount int) time.Duration {
	base := 30 * time.Second
	maxDelay := 30 * time.Minute
	d := base << retryCount
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	return d
}

func withContainerIDJSON(existing json.RawMessage, containerID string) json.RawMessage {
	return marshalPublishResult(existing, containerID, "")
}

func withPlatformMediaIDJSON(existing json.RawMessage, mediaID string) json.RawMessage {
	return marshalPublishResult(existing, "", mediaID)
}

// marshalPublishResult merges a new container/media id into whatever was
// already stored, never discarding the other field.
func marshalPublishResult(existing json.RawMessage, containerID, mediaID string) json.RawMessage {
	var f struct {
		ContainerID     string `json:"container_id,omitempty"`
		PlatformMediaID string `json:"platform_media_id,omitempty"`
	}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &f)
	}
	if containerID != "" {
		f.ContainerID = containerID
	}
	if mediaID != "" {
		f.PlatformMediaID = mediaID
	}
	b, _ := json.Marshal(f)
	return b
}
