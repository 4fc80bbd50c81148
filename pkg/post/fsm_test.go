package post

import "testing"

func TestNext_ScheduledAcceptsOnlyLease(t *testing.T) {
	tr, err := Next(StatusScheduled, EventLease, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Next != StatusLeased {
		t.Errorf("next = %s, want leased", tr.Next)
	}

	if _, err := Next(StatusScheduled, EventPublished, false); err == nil {
		t.Error("expected error transitioning scheduled on EventPublished")
	}
}

func TestNext_LeasedTransitions(t *testing.T) {
	cases := []struct {
		name           string
		event          Event
		retryable      bool
		wantNext       Status
		wantIncRetry   bool
	}{
		{"container created", EventContainerCreated, false, StatusPublishing, false},
		{"cancelled", EventCancel, false, StatusCancelled, false},
		{"lease expired", EventLeaseExpired, false, StatusScheduled, true},
		{"retryable failure", EventFailure, true, StatusScheduled, true},
		{"terminal failure", EventFailure, false, StatusFailed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Next(StatusLeased, tc.event, tc.retryable)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Next != tc.wantNext {
				t.Errorf("next = %s, want %s", tr.Next, tc.wantNext)
			}
			if tr.IncrementRetry != tc.wantIncRetry {
				t.Errorf("incrementRetry = %v, want %v", tr.IncrementRetry, tc.wantIncRetry)
			}
		})
	}
}

func TestNext_PublishingTransitions(t *testing.T) {
	cases := []struct {
		name      string
		event     Event
		retryable bool
		wantNext  Status
	}{
		{"published", EventPublished, false, StatusPosted},
		{"cancelled", EventCancel, false, StatusCancelled},
		{"lease expired", EventLeaseExpired, false, StatusScheduled},
		{"retryable failure", EventFailure, true, StatusScheduled},
		{"terminal failure", EventFailure, false, StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Next(StatusPublishing, tc.event, tc.retryable)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Next != tc.wantNext {
				t.Errorf("next = %s, want %s", tr.Next, tc.wantNext)
			}
		})
	}
}

func TestNext_AccountFrozenShortCircuitsNonTerminal(t *testing.T) {
	for _, status := range []Status{StatusScheduled, StatusLeased, StatusPublishing} {
		tr, err := Next(status, EventAccountFrozen, false)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", status, err)
		}
		if tr.Next != StatusFailed {
			t.Errorf("status=%s: next = %s, want failed", status, tr.Next)
		}
	}
}

func TestNext_AccountFrozenNoOpOnTerminal(t *testing.T) {
	for _, status := range []Status{StatusPosted, StatusFailed, StatusCancelled} {
		tr, err := Next(status, EventAccountFrozen, false)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", status, err)
		}
		if tr.Next != status {
			t.Errorf("status=%s: next = %s, want unchanged", status, tr.Next)
		}
	}
}

func TestNext_PostedIsTerminalDeadEnd(t *testing.T) {
	if _, err := Next(StatusPosted, EventLease, false); err == nil {
		t.Error("expected error, posted has no outgoing transitions")
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusScheduled: false,
		StatusLeased:    false,
		StatusPublishing: false,
		StatusPosted:    true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
		if got := status.IsNonTerminal(); got == want {
			t.Errorf("%s.IsNonTerminal() = %v, want %v", status, got, !want)
		}
	}
}
