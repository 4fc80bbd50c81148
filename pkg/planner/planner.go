// Package planner implements the Planner (C5, §4.4): expanding a weekly
// plan plus a media pool into concrete, spacing-respecting, timezone-aware
// schedule slots, with a preflight dry run and a per-week-atomic commit.
package planner

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/post"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// MediaItem is one entry in the media pool supplied to a batch (§4.4 step 6).
// A single URL produces a photo or reel post; 2-10 URLs produce a carousel
// post when the request has AllowCarousel set.
type MediaItem struct {
	URLs    []string
	IsVideo bool
}

// VideoMode selects which post type a video MediaItem becomes.
type VideoMode string

const (
	VideoModeReelFeed VideoMode = "reel_feed"
	VideoModeReelOnly VideoMode = "reel_only"
)

// Request is the input to Preflight and Commit (§4.4).
type Request struct {
	AccountID         int64
	StartDate         time.Time // local calendar date, time-of-day ignored
	EndDate           time.Time // inclusive
	WeeklyPlan        map[time.Weekday]int
	RandomStart       time.Duration // offset from local midnight
	RandomEnd         time.Duration
	MinSpacingMinutes int
	MediaPool         []MediaItem
	VideoMode         VideoMode
	OverrideSpacing   bool
	AllowCarousel     bool
	Seed              *int64
}

// Slot is one planned post (§4.4).
type Slot struct {
	ScheduledAt time.Time // UTC
	LocalDate   string
	MediaURL    string
	PostType    post.Type
}

// Conflict records a day where the requested count had to be reduced or
// points had to be dropped (§4.4 steps 3-4).
type Conflict struct {
	LocalDate string
	Reason    string
	Requested int
	Granted   int
}

// PreflightResult is the dry-run output of Preflight (§4.4, §6).
type PreflightResult struct {
	Slots             []Slot
	Conflicts         []Conflict
	InsufficientMedia bool
	SeedUsed          int64
}

// existingLookup supplies the non-terminal scheduled_at values already on
// the books for an account's local date, so the repair step can respect
// them when override_spacing is false (§4.4 step 4).
type existingLookup func(ctx context.Context, accountID int64, dayStart, dayEnd time.Time, excludeID *int64) ([]time.Time, error)

// Planner expands weekly plans into concrete slots and commits them.
type Planner struct {
	accounts *account.Service
	posts    *post.Store
	existing existingLookup
}

// New creates a Planner. existing is normally post.Store.NonTerminalOnDate;
// it is injected so Preflight can be unit tested without a database.
func New(accounts *account.Service, posts *post.Store, existing existingLookup) *Planner {
	return &Planner{accounts: accounts, posts: posts, existing: existing}
}

// Preflight runs the full algorithm of §4.4 without writing anything,
// returning the slots a Commit would create.
func (p *Planner) Preflight(ctx context.Context, req Request) (PreflightResult, error) {
	acct, err := p.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return PreflightResult{}, err
	}
	loc := acct.Location()

	seed := int64(0)
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	spacing := time.Duration(req.MinSpacingMinutes) * time.Minute
	if spacing <= 0 {
		spacing = 15 * time.Minute
	}

	var slots []Slot
	var conflicts []Conflict
	mediaIdx := 0
	insufficientMedia := false

	for d := normalizeDate(req.StartDate); !d.After(normalizeDate(req.EndDate)); d = d.AddDate(0, 0, 1) {
		n := req.WeeklyPlan[d.Weekday()]
		if n < 0 {
			n = 0
		}
		if n > post.DailyCap {
			n = post.DailyCap
		}
		if n == 0 {
			continue
		}

		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var existing []time.Time
		if !req.OverrideSpacing && p.existing != nil {
			existing, err = p.existing(ctx, req.AccountID, dayStart.UTC(), dayEnd.UTC(), nil)
			if err != nil {
				return PreflightResult{}, err
			}
		}

		existingOffsets := make([]time.Duration, 0, len(existing))
		for _, t := range existing {
			existingOffsets = append(existingOffsets, t.In(loc).Sub(dayStart))
		}

		offsets := sampleOffsets(rng, n, req.RandomStart, req.RandomEnd)
		offsets, dropped := snapAndRepair(offsets, spacing, req.RandomEnd, existingOffsets)
		if dropped > 0 {
			conflicts = append(conflicts, Conflict{
				LocalDate: dayStart.Format("2006-01-02"),
				Reason:    "insufficient room to satisfy spacing within the random window",
				Requested: n,
				Granted:   len(offsets),
			})
		}

		for _, off := range offsets {
			if mediaIdx >= len(req.MediaPool) {
				insufficientMedia = true
				break
			}
			item := req.MediaPool[mediaIdx]
			mediaIdx++

			postType := postTypeFor(item, req.VideoMode, req.AllowCarousel)
			mediaURL, err := mediaURLFor(item, postType)
			if err != nil {
				return PreflightResult{}, err
			}

			local := dayStart.Add(off)
			slots = append(slots, Slot{
				ScheduledAt: local.UTC(),
				LocalDate:   dayStart.Format("2006-01-02"),
				MediaURL:    mediaURL,
				PostType:    postType,
			})
		}
	}

	return PreflightResult{Slots: slots, Conflicts: conflicts, InsufficientMedia: insufficientMedia, SeedUsed: seed}, nil
}

// CommitResult is the outcome of Commit (§4.4, §6).
type CommitResult struct {
	Created int
}

// Commit inserts the slots from a prior Preflight, one transaction per ISO
// week so that a failure partway through only rolls back that week (§4.4).
func (p *Planner) Commit(ctx context.Context, req Request, slots []Slot, clientRequestIDPrefix string) (CommitResult, error) {
	acct, err := p.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return CommitResult{}, err
	}

	chunks := chunkByWeek(slots)
	total := 0
	for _, chunk := range chunks {
		items := make([]post.CreateParams, 0, len(chunk))
		for i, s := range chunk {
			var clientRequestID *string
			if clientRequestIDPrefix != "" {
				id := fmt.Sprintf("%s:%s:%d", clientRequestIDPrefix, s.LocalDate, i)
				clientRequestID = &id
			}
			items = append(items, post.CreateParams{
				AccountID:       acct.ID,
				Platform:        "instagram",
				PostType:        s.PostType,
				MediaURL:        s.MediaURL,
				ScheduledAt:     s.ScheduledAt,
				ClientRequestID: clientRequestID,
			})
		}
		created, err := p.posts.CreateBatch(ctx, items)
		if err != nil {
			return CommitResult{Created: total}, err
		}
		total += len(created)
	}
	return CommitResult{Created: total}, nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sampleOffsets draws n distinct minute-granularity offsets uniformly in
// [start, end) (§4.4 step 3).
func sampleOffsets(rng *rand.Rand, n int, start, end time.Duration) []time.Duration {
	if n <= 0 || end <= start {
		return nil
	}
	span := int64((end - start) / time.Minute)
	if span <= 0 {
		span = 1
	}

	seen := make(map[int64]bool, n)
	var out []time.Duration
	// Bounded attempts: if the window is too narrow for n distinct minutes,
	// stop early rather than looping forever; snapAndRepair will report the
	// shortfall as a conflict.
	for attempts := 0; attempts < n*20 && len(out) < n; attempts++ {
		m := rng.Int63n(span)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, start+time.Duration(m)*time.Minute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// snapAndRepair merges the new offsets against the day's existing
// (already-booked) offsets, then walks the combined, sorted list pushing
// any point that sits closer than spacing to its predecessor forward until
// the gap is satisfied, dropping points pushed past end. existing points
// are treated as fixed: only newly-sampled offsets move (§4.4 steps 3-4).
func snapAndRepair(offsets []time.Duration, spacing, end time.Duration, existing []time.Duration) (repaired []time.Duration, dropped int) {
	type point struct {
		at    time.Duration
		fixed bool
	}
	points := make([]point, 0, len(offsets)+len(existing))
	for _, v := range existing {
		points = append(points, point{at: v, fixed: true})
	}
	for _, v := range offsets {
		points = append(points, point{at: v, fixed: false})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].at < points[j].at })

	for i := 1; i < len(points); i++ {
		gap := points[i].at - points[i-1].at
		if gap < spacing && !points[i].fixed {
			points[i].at = points[i-1].at + spacing
		}
	}

	var kept []time.Duration
	for _, pt := range points {
		if pt.fixed {
			continue
		}
		if pt.at > end {
			dropped++
			continue
		}
		kept = append(kept, pt.at)
	}
	return kept, dropped
}

// postTypeFor classifies a pool item: a carousel when it carries more than
// one URL and the request allows carousels, otherwise a photo or reel
// depending on IsVideo and the request's VideoMode (§4.4 step 6).
func postTypeFor(item MediaItem, mode VideoMode, allowCarousel bool) post.Type {
	if allowCarousel && len(item.URLs) > 1 {
		return post.TypeCarousel
	}
	if !item.IsVideo {
		return post.TypePhoto
	}
	if mode == VideoModeReelOnly {
		return post.TypeReelOnly
	}
	return post.TypeReelFeed
}

// mediaURLFor computes the value stored in a slot's media_url column: the
// item's single URL, or a carousel envelope when postType is carousel
// (§3, §4.4 step 6, §9).
func mediaURLFor(item MediaItem, postType post.Type) (string, error) {
	if postType == post.TypeCarousel {
		if len(item.URLs) < 2 || len(item.URLs) > 10 {
			return "", schederr.Validation("carousel media item must have 2-10 urls, got %d", len(item.URLs))
		}
		return post.MarshalCarouselEnvelope(item.URLs)
	}
	if len(item.URLs) == 0 {
		return "", schederr.Validation("media item has no urls")
	}
	return item.URLs[0], nil
}

// chunkByWeek groups slots into ISO-week buckets for per-week-atomic commit
// (§4.4).
func chunkByWeek(slots []Slot) [][]Slot {
	byWeek := make(map[string][]Slot)
	var order []string
	for _, s := range slots {
		y, w := s.ScheduledAt.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", y, w)
		if _, ok := byWeek[key]; !ok {
			order = append(order, key)
		}
		byWeek[key] = append(byWeek[key], s)
	}
	chunks := make([][]Slot, 0, len(order))
	for _, key := range order {
		chunks = append(chunks, byWeek[key])
	}
	return chunks
}
