package schederr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConstructors_SetExpectedKind(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want Kind
	}{
		{"Validation", Validation("bad field %q", "x"), KindValidation},
		{"NotFound", NotFound("post"), KindNotFound},
		{"Conflict", Conflict("daily_cap_exceeded", "account %d over cap", 1), KindConflict},
		{"SpacingConflict", SpacingConflict(nil), KindSpacingConflict},
		{"RateLimited", RateLimited(time.Minute), KindRateLimited},
		{"Transient", Transient("db down", nil), KindTransient},
		{"Terminal", Terminal("bad_media", "media_url %q rejected", "x"), KindTerminal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Kind != tc.want {
				t.Errorf("kind = %v, want %v", tc.err.Kind, tc.want)
			}
		})
	}
}

func TestValidation_FormatsMessage(t *testing.T) {
	err := Validation("unrecognized weekday %q in weekly_plan", "funday")
	want := `validation: unrecognized weekday "funday" in weekly_plan`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNotFound_AppendsSuffix(t *testing.T) {
	err := NotFound("account")
	if err.Message != "account not found" {
		t.Errorf("message = %q, want %q", err.Message, "account not found")
	}
}

func TestRateLimited_CarriesRetryAfter(t *testing.T) {
	err := RateLimited(30 * time.Second)
	if err.RetryAfter != 30*time.Second {
		t.Errorf("retryAfter = %v, want 30s", err.RetryAfter)
	}
}

func TestSpacingConflict_CarriesNeighbors(t *testing.T) {
	n1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	n2 := time.Date(2026, 1, 1, 9, 10, 0, 0, time.UTC)
	err := SpacingConflict([]time.Time{n1, n2})
	if len(err.Neighbors) != 2 {
		t.Fatalf("len(neighbors) = %d, want 2", len(err.Neighbors))
	}
}

func TestTransient_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("publishing limit lookup failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected Transient error to unwrap to its cause")
	}
	if err.Error() != fmt.Sprintf("transient: publishing limit lookup failed: %v", cause) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOf_ClassifiesWrappedError(t *testing.T) {
	base := Terminal("bad_media", "rejected")
	wrapped := fmt.Errorf("handler: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected ok=true for a wrapped *Error")
	}
	if kind != KindTerminal {
		t.Errorf("kind = %v, want terminal", kind)
	}
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	if ok {
		t.Error("expected ok=false for a plain error")
	}
}

func TestAs_MatchesClassifiedError(t *testing.T) {
	base := Conflict("conflict_code", "conflict")
	wrapped := fmt.Errorf("store: %w", base)

	var target *Error
	if !As(wrapped, &target) {
		t.Fatal("expected As to match")
	}
	if target.Code != "conflict_code" {
		t.Errorf("code = %q, want conflict_code", target.Code)
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindValidation:      "validation",
		KindNotFound:        "not_found",
		KindConflict:        "conflict",
		KindSpacingConflict: "spacing_conflict",
		KindRateLimited:     "rate_limited",
		KindTransient:       "transient",
		KindTerminal:        "terminal",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
