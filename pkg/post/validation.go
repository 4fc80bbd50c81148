package post

import (
	"regexp"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

const (
	// MinSpacing is the minimum gap between any two non-terminal posts on
	// the same account and local date (§3), absent override_spacing.
	MinSpacing = 15 * time.Minute
	// DailyCap is the maximum count of non-terminal posts per account per
	// local date (§3), absent override_spacing.
	DailyCap = 15
)

// captionPattern extracts TEXT from a *****TEXT***** marker in a URL path
// (§6, §9). The non-greedy group stops at the first closing run of five
// asterisks so embedded asterisks in the surrounding path don't get eaten.
var captionPattern = regexp.MustCompile(`\*{5}(.+?)\*{5}`)

// ExtractCaption pulls a caption out of a *****TEXT***** marker in a media
// URL, truncated to 200 runes (§9). ok is false if no marker is present.
func ExtractCaption(mediaURL string) (caption string, ok bool) {
	m := captionPattern.FindStringSubmatch(mediaURL)
	if m == nil {
		return "", false
	}
	text := m[1]
	runes := []rune(text)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return string(runes), true
}

// LocalDate reduces an instant to its calendar date string in loc, the key
// spacing and cap invariants are scoped by (§3).
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CheckSpacing validates that candidate is at least MinSpacing away from
// every time in existing (all assumed to be on the same local date, for
// non-terminal posts other than the one being moved/edited). It returns a
// *schederr.Error of kind SpacingConflict listing the offending neighbors
// if the invariant would be violated.
func CheckSpacing(candidate time.Time, existing []time.Time) error {
	var offenders []time.Time
	for _, t := range existing {
		d := candidate.Sub(t)
		if d < 0 {
			d = -d
		}
		if d < MinSpacing {
			offenders = append(offenders, t)
		}
	}
	if len(offenders) > 0 {
		return schederr.SpacingConflict(offenders)
	}
	return nil
}

// CheckDailyCap validates that adding one more non-terminal post to a day
// that already has count posts would not exceed DailyCap.
func CheckDailyCap(count int) error {
	if count >= DailyCap {
		return schederr.Conflict("daily_cap_exceeded", "account already has %d non-terminal posts on this date (cap %d)", count, DailyCap)
	}
	return nil
}
