// Package post implements the Post entity (§3) and its publish state machine
// (§4.7): the scheduled unit of content driven from scheduled through the
// external platform's create-container/poll/publish workflow to posted.
package post

import (
	"encoding/json"
	"time"
)

// Type is the canonical set of post content shapes (§9 Open Question: the
// source accepted several divergent spellings; this pins photo, reel_feed,
// reel_only, carousel as the only valid values and rejects all others at
// API validation).
type Type string

const (
	TypePhoto    Type = "photo"
	TypeReelFeed Type = "reel_feed"
	TypeReelOnly Type = "reel_only"
	TypeCarousel Type = "carousel"
)

// ValidTypes lists every accepted Type, for validation error messages.
var ValidTypes = []Type{TypePhoto, TypeReelFeed, TypeReelOnly, TypeCarousel}

// IsValid reports whether t is one of the canonical post types.
func (t Type) IsValid() bool {
	switch t {
	case TypePhoto, TypeReelFeed, TypeReelOnly, TypeCarousel:
		return true
	default:
		return false
	}
}

// Status is the post's position in the publish FSM (§4.7).
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLeased    Status = "leased"
	StatusPublishing Status = "publishing"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the publish FSM has no further transitions for
// a post in this status: posted, failed, or cancelled. Posted posts still
// count toward the per-day spacing and cap checks, which exclude only failed
// and cancelled rows.
func (s Status) IsTerminal() bool {
	return s == StatusPosted || s == StatusFailed || s == StatusCancelled
}

// IsNonTerminal is the complement of IsTerminal: scheduled, leased, or
// publishing.
func (s Status) IsNonTerminal() bool {
	return !s.IsTerminal()
}

// CarouselEnvelope is the discriminated-union JSON shape stored in
// media_url when post_type="carousel" (§6, §9): {"type":"carousel","urls":[...]}.
type CarouselEnvelope struct {
	Type string   `json:"type"`
	URLs []string `json:"urls"`
}

// MarshalCarouselEnvelope serializes a list of 2-10 URLs into the envelope
// string stored in the media_url column.
func MarshalCarouselEnvelope(urls []string) (string, error) {
	b, err := json.Marshal(CarouselEnvelope{Type: "carousel", URLs: urls})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseCarouselEnvelope attempts to decode a media_url value as a carousel
// envelope. ok is false if raw is not a carousel envelope (e.g. a plain URL).
func ParseCarouselEnvelope(raw string) (env CarouselEnvelope, ok bool) {
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return CarouselEnvelope{}, false
	}
	return env, env.Type == "carousel"
}

// Post is the persisted post record.
type Post struct {
	ID              int64
	AccountID       int64
	Platform        string
	PostType        Type
	MediaURL        string // plain URL, or a CarouselEnvelope JSON string
	Caption         string
	ScheduledAt     time.Time // UTC instant
	ClientRequestID *string
	AssetID         *int64

	Status       Status
	RetryCount   int
	ErrorCode    *string
	PublishResult json.RawMessage // opaque platform response, includes container_id/platform_media_id
	LockedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// publishResultFields is the shape this package writes into PublishResult;
// the platform is free to include additional fields, which round-trip
// untouched since PublishResult is stored as raw JSON.
type publishResultFields struct {
	ContainerID     string `json:"container_id,omitempty"`
	PlatformMediaID string `json:"platform_media_id,omitempty"`
}

// ContainerID extracts the staged container id from publish_result, if any.
// A non-empty return after a crash is what lets a successor worker resume
// from polling instead of re-creating the container (§4.7, §8).
func (p Post) ContainerID() string {
	if len(p.PublishResult) == 0 {
		return ""
	}
	var f publishResultFields
	if err := json.Unmarshal(p.PublishResult, &f); err != nil {
		return ""
	}
	return f.ContainerID
}

// PlatformMediaID extracts the final published media id from publish_result, if any.
func (p Post) PlatformMediaID() string {
	if len(p.PublishResult) == 0 {
		return ""
	}
	var f publishResultFields
	if err := json.Unmarshal(p.PublishResult, &f); err != nil {
		return ""
	}
	return f.PlatformMediaID
}

// Response is the JSON shape returned by the posts API (§6).
type Response struct {
	ID              int64           `json:"id"`
	AccountID       int64           `json:"account_id"`
	Platform        string          `json:"platform"`
	PostType        Type            `json:"post_type"`
	MediaURL        string          `json:"media_url"`
	Caption         string          `json:"caption"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	ClientRequestID *string         `json:"client_request_id,omitempty"`
	AssetID         *int64          `json:"asset_id,omitempty"`
	Status          Status          `json:"status"`
	RetryCount      int             `json:"retry_count"`
	ErrorCode       *string         `json:"error_code,omitempty"`
	PublishResult   json.RawMessage `json:"publish_result,omitempty"`
}

// ToResponse converts a persisted Post to its API representation.
func ToResponse(p Post) Response {
	return Response{
		ID:              p.ID,
		AccountID:       p.AccountID,
		Platform:        p.Platform,
		PostType:        p.PostType,
		MediaURL:        p.MediaURL,
		Caption:         p.Caption,
		ScheduledAt:     p.ScheduledAt,
		ClientRequestID: p.ClientRequestID,
		AssetID:         p.AssetID,
		Status:          p.Status,
		RetryCount:      p.RetryCount,
		ErrorCode:       p.ErrorCode,
		PublishResult:   p.PublishResult,
	}
}
