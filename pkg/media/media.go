// Package media implements MediaAsset (§3): the deduplicated reference to a
// stored image or video file that a post points at.
package media

import "time"

// Asset is a stored media file, deduplicated per account by content hash.
type Asset struct {
	ID         int64
	AccountID  int64
	StoredPath string // local/object-storage path the file was written to
	MediaURL   string // URL the platform API will fetch the file from
	Bytes      int64
	SHA256     string // hex-encoded content hash, unique per account
	ShortHash  string // first 8 hex chars of SHA256, used in human-facing logs
	CreatedAt  time.Time
}

// Response is the JSON shape returned by the media API.
type Response struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	MediaURL  string `json:"media_url"`
	Bytes     int64  `json:"bytes"`
	ShortHash string `json:"short_hash"`
}

// ToResponse converts a persisted Asset to its API representation.
func ToResponse(a Asset) Response {
	return Response{
		ID:        a.ID,
		AccountID: a.AccountID,
		MediaURL:  a.MediaURL,
		Bytes:     a.Bytes,
		ShortHash: a.ShortHash,
	}
}
