package post

import "fmt"

// Event is a trigger driving the publish FSM (§4.7). The FSM itself is a
// pure function of (status, event) so it can be tested without a database
// or platform client.
type Event int

const (
	// EventLease fires when the scheduler hands a post to a worker.
	EventLease Event = iota
	// EventContainerCreated fires once CreateContainer (and, for carousels,
	// its children) has succeeded and the container id is persisted.
	EventContainerCreated
	// EventPublished fires once Publish has returned a platform_media_id.
	EventPublished
	// EventFailure fires on any step's failure; Retryable distinguishes a
	// transient failure (goes back to scheduled) from a terminal one.
	EventFailure
	// EventCancel fires when the API marks a leased/publishing post cancelled.
	EventCancel
	// EventLeaseExpired fires when the watchdog reclaims a stale lease.
	EventLeaseExpired
	// EventAccountFrozen fires when the owning account is inactive; it
	// short-circuits any non-terminal post straight to failed.
	EventAccountFrozen
)

// Transition is the outcome of applying an Event to a Status: the resulting
// status, and whether retry_count should be incremented.
type Transition struct {
	Next            Status
	IncrementRetry  bool
}

// Next computes the status transition for (status, event). retryable is
// only consulted for EventFailure; it is ignored for other events. An error
// is returned for any transition the FSM does not define, so callers never
// silently apply an impossible state change.
func Next(status Status, event Event, retryable bool) (Transition, error) {
	if event == EventAccountFrozen {
		if status.IsTerminal() {
			return Transition{Next: status}, nil
		}
		return Transition{Next: StatusFailed}, nil
	}

	switch status {
	case StatusScheduled:
		if event == EventLease {
			return Transition{Next: StatusLeased}, nil
		}

	case StatusLeased:
		switch event {
		case EventContainerCreated:
			return Transition{Next: StatusPublishing}, nil
		case EventCancel:
			return Transition{Next: StatusCancelled}, nil
		case EventLeaseExpired:
			return Transition{Next: StatusScheduled, IncrementRetry: true}, nil
		case EventFailure:
			if retryable {
				return Transition{Next: StatusScheduled, IncrementRetry: true}, nil
			}
			return Transition{Next: StatusFailed}, nil
		}

	case StatusPublishing:
		switch event {
		case EventPublished:
			return Transition{Next: StatusPosted}, nil
		case EventCancel:
			return Transition{Next: StatusCancelled}, nil
		case EventLeaseExpired:
			return Transition{Next: StatusScheduled, IncrementRetry: true}, nil
		case EventFailure:
			if retryable {
				return Transition{Next: StatusScheduled, IncrementRetry: true}, nil
			}
			return Transition{Next: StatusFailed}, nil
		}
	}

	return Transition{}, fmt.Errorf("post: no transition for status=%s event=%d", status, event)
}
