// Package account implements the Account entity (§3): the logical identity
// on the external platform that posts are scheduled against.
package account

import (
	"time"

	"golang.org/x/oauth2"
)

// Account is the persisted account record.
type Account struct {
	ID             int64
	PlatformUserID string
	Handle         string
	AccessToken    oauth2.Token // opaque, rotatable (§3); OAuth acquisition itself is out of scope
	Timezone       string       // IANA zone name, e.g. "America/New_York"
	Active         bool         // false means "frozen" (§4.7)
	CreatedAt      time.Time
}

// Location returns the time.Location for the account's timezone, defaulting
// to UTC if the stored zone fails to load (should not happen past validation).
func (a Account) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Response is the JSON shape returned by the accounts API (§6). The access
// token is never serialized back to clients.
type Response struct {
	ID             int64  `json:"id"`
	Handle         string `json:"handle"`
	PlatformUserID string `json:"platform_user_id"`
	Timezone       string `json:"timezone"`
	Active         bool   `json:"active"`
}

// ToResponse converts a persisted Account to its API representation.
func ToResponse(a Account) Response {
	return Response{
		ID:             a.ID,
		Handle:         a.Handle,
		PlatformUserID: a.PlatformUserID,
		Timezone:       a.Timezone,
		Active:         a.Active,
	}
}

// RefreshRequest is the body of POST /api/accounts/refresh.
type RefreshRequest struct {
	Token    string `json:"token,omitempty"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,min=1"`
}
