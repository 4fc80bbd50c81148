package account

import (
	"testing"
	"time"
)

func TestLocation_LoadsValidZone(t *testing.T) {
	a := Account{Timezone: "America/New_York"}
	loc := a.Location()
	if loc.String() != "America/New_York" {
		t.Errorf("loc = %v, want America/New_York", loc)
	}
}

func TestLocation_FallsBackToUTCOnBadZone(t *testing.T) {
	a := Account{Timezone: "Not/AZone"}
	if loc := a.Location(); loc != time.UTC {
		t.Errorf("loc = %v, want UTC", loc)
	}
}

func TestToResponse_OmitsAccessToken(t *testing.T) {
	a := Account{
		ID:             1,
		Handle:         "brand",
		PlatformUserID: "ig-123",
		Timezone:       "UTC",
		Active:         true,
	}
	resp := ToResponse(a)
	if resp.ID != a.ID || resp.Handle != a.Handle || resp.PlatformUserID != a.PlatformUserID {
		t.Errorf("resp = %+v", resp)
	}
	if !resp.Active {
		t.Error("expected Active to round-trip true")
	}
}
