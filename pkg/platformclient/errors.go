package platformclient

import (
	"fmt"
	"net/http"

	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// classifyStatus maps an upstream HTTP status code to the error taxonomy of
// §7, the same status-code-to-kind split the rest of the corpus uses at its
// upstream boundary: 401/403 are permanent auth failures (Terminal), 402/429
// are quota exhaustion (RateLimited), 5xx and 408 are Transient, and
// anything else unexpected is Terminal so a malformed post doesn't retry
// forever.
func classifyStatus(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return schederr.Terminal("auth_revoked", "platform rejected credentials: %s", body)
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return schederr.RateLimited(0)
	case status == http.StatusRequestTimeout || status >= 500:
		return schederr.Transient(fmt.Sprintf("platform returned %d: %s", status, body), nil)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return schederr.Terminal("media_rejected", "platform rejected request: %s", body)
	default:
		return schederr.Terminal("unexpected_response", "platform returned %d: %s", status, body)
	}
}

// classifyContainerState maps a terminal poll state to the taxonomy (§4.7
// step 3): EXPIRED means the staged container timed out before publish and
// must be recreated from scratch (Transient, since retrying with a fresh
// container often succeeds); ERROR is the platform's own processing
// failure and is Terminal, so it is never retried.
func classifyContainerState(state ContainerState) error {
	switch state {
	case StateExpired:
		return schederr.Transient("container expired before publish", nil)
	case StateError:
		return schederr.Terminal("container_processing_failed", "platform failed to process the staged container")
	default:
		return nil
	}
}
