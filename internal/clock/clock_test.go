package clock

import (
	"testing"
	"time"
)

func TestReal_NowIsUTC(t *testing.T) {
	if loc := (Real{}).Now().Location(); loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}

func TestFake_PinnedUntilAdvanced(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if !f.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", f.Now(), start)
	}

	f.Advance(5 * time.Minute)
	want := start.Add(5 * time.Minute)
	if !f.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", f.Now(), want)
	}
}

func TestFake_SetOverridesAndNormalizesToUTC(t *testing.T) {
	f := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	loc := time.FixedZone("test", 3600)
	f.Set(time.Date(2026, 6, 1, 12, 0, 0, 0, loc))

	if want := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC); !f.Now().Equal(want) {
		t.Errorf("Now() after Set = %v, want %v", f.Now(), want)
	}
	if f.Now().Location() != time.UTC {
		t.Errorf("location = %v, want UTC", f.Now().Location())
	}
}
