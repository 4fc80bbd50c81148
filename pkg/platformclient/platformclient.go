// Package platformclient implements PlatformClient (§4.2): a pure I/O
// facade over the external graph API. It carries no retry or scheduling
// policy of its own — that lives in pkg/scheduler's Driver — only per-call
// timeouts, outbound rate shaping, and response classification.
package platformclient

import (
	"context"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/governor"
)

// ContainerState is the external platform's staging status for a container.
type ContainerState string

const (
	StateInProgress ContainerState = "IN_PROGRESS"
	StateFinished   ContainerState = "FINISHED"
	StateError      ContainerState = "ERROR"
	StateExpired    ContainerState = "EXPIRED"
)

// CreateContainerRequest is the payload for staging a single media item.
type CreateContainerRequest struct {
	MediaURL string
	Caption  string
	IsVideo  bool
	IsReel   bool
}

// Client is the typed wrapper over the external platform's publishing API.
type Client interface {
	CreateContainer(ctx context.Context, acct account.Account, req CreateContainerRequest) (containerID string, err error)
	ContainerStatus(ctx context.Context, acct account.Account, containerID string) (ContainerState, error)
	Publish(ctx context.Context, acct account.Account, containerID string) (platformMediaID string, err error)
	PublishingLimit(ctx context.Context, acct account.Account) (governor.Quota, error)
	CreateCarouselChild(ctx context.Context, acct account.Account, itemURL string) (childContainerID string, err error)
	CreateCarouselParent(ctx context.Context, acct account.Account, childIDs []string, caption string) (containerID string, err error)
}

// quotaSourceAdapter lets Client satisfy governor.QuotaSource without the
// governor package depending on platformclient (it would otherwise be a
// cyclic import, since platformclient already depends on governor for the
// Quota type).
type quotaSourceAdapter struct {
	client Client
	lookup func(ctx context.Context, accountID int64) (account.Account, error)
}

// NewQuotaSource adapts a Client + account lookup function into a
// governor.QuotaSource.
func NewQuotaSource(client Client, lookup func(ctx context.Context, accountID int64) (account.Account, error)) governor.QuotaSource {
	return quotaSourceAdapter{client: client, lookup: lookup}
}

func (a quotaSourceAdapter) PublishingLimit(ctx context.Context, accountID int64) (governor.Quota, error) {
	acct, err := a.lookup(ctx, accountID)
	if err != nil {
		return governor.Quota{}, err
	}
	return a.client.PublishingLimit(ctx, acct)
}

// CallTimeout is the default per-call timeout (§4.2) when the caller does
// not already carry a tighter deadline.
const CallTimeout = 15 * time.Second
