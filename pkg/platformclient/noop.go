package platformclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/governor"
)

// NoopClient is a stub Client that logs and succeeds immediately, for
// local development and tests that shouldn't depend on the real platform.
type NoopClient struct {
	Logger *slog.Logger
	seq    int
}

// CreateContainer logs the request and returns a synthetic container id.
func (n *NoopClient) CreateContainer(ctx context.Context, acct account.Account, req CreateContainerRequest) (string, error) {
	n.seq++
	id := fmt.Sprintf("noop-container-%d", n.seq)
	n.Logger.Info("noop create container", "account_id", acct.ID, "media_url", req.MediaURL, "container_id", id)
	return id, nil
}

// CreateCarouselChild logs the request and returns a synthetic child id.
func (n *NoopClient) CreateCarouselChild(ctx context.Context, acct account.Account, itemURL string) (string, error) {
	return n.CreateContainer(ctx, acct, CreateContainerRequest{MediaURL: itemURL})
}

// CreateCarouselParent logs the request and returns a synthetic parent id.
func (n *NoopClient) CreateCarouselParent(ctx context.Context, acct account.Account, childIDs []string, caption string) (string, error) {
	n.seq++
	id := fmt.Sprintf("noop-carousel-%d", n.seq)
	n.Logger.Info("noop create carousel parent", "account_id", acct.ID, "children", len(childIDs), "container_id", id)
	return id, nil
}

// ContainerStatus always reports FINISHED immediately.
func (n *NoopClient) ContainerStatus(ctx context.Context, acct account.Account, containerID string) (ContainerState, error) {
	return StateFinished, nil
}

// Publish logs the request and returns a synthetic media id.
func (n *NoopClient) Publish(ctx context.Context, acct account.Account, containerID string) (string, error) {
	id := "noop-media-" + containerID
	n.Logger.Info("noop publish", "account_id", acct.ID, "container_id", containerID, "media_id", id)
	return id, nil
}

// PublishingLimit always reports ample remaining quota.
func (n *NoopClient) PublishingLimit(ctx context.Context, acct account.Account) (governor.Quota, error) {
	return governor.Quota{Used: 0, Limit: 25, WindowResetsAt: time.Now().Add(24 * time.Hour)}, nil
}
