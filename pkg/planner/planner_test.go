package planner

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ktharrington/Scheduler-Application/pkg/post"
)

func TestSampleOffsets_ReturnsDistinctSortedOffsets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	offsets := sampleOffsets(rng, 5, 0, 2*time.Hour)

	if len(offsets) != 5 {
		t.Fatalf("len = %d, want 5", len(offsets))
	}
	seen := make(map[time.Duration]bool)
	for i, o := range offsets {
		if seen[o] {
			t.Errorf("duplicate offset %v", o)
		}
		seen[o] = true
		if o < 0 || o >= 2*time.Hour {
			t.Errorf("offset %v out of [0, 2h)", o)
		}
		if i > 0 && offsets[i-1] > o {
			t.Errorf("offsets not sorted: %v before %v", offsets[i-1], o)
		}
	}
}

func TestSampleOffsets_ZeroOrInvalidWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if out := sampleOffsets(rng, 0, 0, time.Hour); out != nil {
		t.Errorf("n=0: got %v, want nil", out)
	}
	if out := sampleOffsets(rng, 3, time.Hour, time.Hour); out != nil {
		t.Errorf("end<=start: got %v, want nil", out)
	}
}

func TestSampleOffsets_NarrowWindowStopsEarly(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// A 3-minute window can hold at most 3 distinct minute offsets, no
	// matter how many are requested.
	out := sampleOffsets(rng, 10, 0, 3*time.Minute)
	if len(out) > 3 {
		t.Errorf("len = %d, want <= 3", len(out))
	}
}

func TestSnapAndRepair_PushesCloseOffsetsApart(t *testing.T) {
	offsets := []time.Duration{0, time.Minute, 2 * time.Minute}
	spacing := 15 * time.Minute
	end := time.Hour

	repaired, dropped := snapAndRepair(offsets, spacing, end, nil)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(repaired) != 3 {
		t.Fatalf("len(repaired) = %d, want 3", len(repaired))
	}
	for i := 1; i < len(repaired); i++ {
		if repaired[i]-repaired[i-1] < spacing {
			t.Errorf("gap between %v and %v is %v, want >= %v", repaired[i-1], repaired[i], repaired[i]-repaired[i-1], spacing)
		}
	}
}

func TestSnapAndRepair_DropsOffsetsPushedPastEnd(t *testing.T) {
	offsets := []time.Duration{0, time.Minute}
	spacing := 50 * time.Minute
	end := 40 * time.Minute

	repaired, dropped := snapAndRepair(offsets, spacing, end, nil)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if len(repaired) != 1 || repaired[0] != 0 {
		t.Errorf("repaired = %v, want [0]", repaired)
	}
}

func TestSnapAndRepair_RespectsExistingFixedPoints(t *testing.T) {
	existing := []time.Duration{10 * time.Minute}
	offsets := []time.Duration{12 * time.Minute}
	spacing := 15 * time.Minute
	end := time.Hour

	repaired, dropped := snapAndRepair(offsets, spacing, end, existing)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(repaired) != 1 {
		t.Fatalf("len(repaired) = %d, want 1", len(repaired))
	}
	if repaired[0] < existing[0]+spacing {
		t.Errorf("new offset %v was not pushed clear of existing %v by spacing %v", repaired[0], existing[0], spacing)
	}
}

func TestSnapAndRepair_ExistingPointsNeverMove(t *testing.T) {
	existing := []time.Duration{0, 5 * time.Minute}
	repaired, _ := snapAndRepair(nil, 15*time.Minute, time.Hour, existing)
	if len(repaired) != 0 {
		t.Errorf("repaired = %v, want empty (existing points are not returned)", repaired)
	}
}

func TestPostTypeFor(t *testing.T) {
	photo := MediaItem{URLs: []string{"https://example.com/a.jpg"}, IsVideo: false}
	if got := postTypeFor(photo, VideoModeReelFeed, false); got != "photo" {
		t.Errorf("photo: got %s", got)
	}

	video := MediaItem{URLs: []string{"https://example.com/a.mp4"}, IsVideo: true}
	if got := postTypeFor(video, VideoModeReelOnly, false); got != "reel_only" {
		t.Errorf("video/reel_only: got %s", got)
	}
	if got := postTypeFor(video, VideoModeReelFeed, false); got != "reel_feed" {
		t.Errorf("video/reel_feed: got %s", got)
	}
}

func TestPostTypeFor_CarouselRequiresAllowAndMultipleURLs(t *testing.T) {
	multi := MediaItem{URLs: []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}}

	if got := postTypeFor(multi, VideoModeReelFeed, false); got != "photo" {
		t.Errorf("allow_carousel=false: got %s, want photo (falls back to single-item classification)", got)
	}
	if got := postTypeFor(multi, VideoModeReelFeed, true); got != "carousel" {
		t.Errorf("allow_carousel=true: got %s, want carousel", got)
	}

	single := MediaItem{URLs: []string{"https://example.com/a.jpg"}}
	if got := postTypeFor(single, VideoModeReelFeed, true); got != "photo" {
		t.Errorf("single url, allow_carousel=true: got %s, want photo", got)
	}
}

func TestMediaURLFor_CarouselMarshalsEnvelope(t *testing.T) {
	item := MediaItem{URLs: []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}}
	url, err := mediaURLFor(item, "carousel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env, ok := post.ParseCarouselEnvelope(url)
	if !ok {
		t.Fatal("expected a carousel envelope")
	}
	if len(env.URLs) != 2 {
		t.Errorf("len(urls) = %d, want 2", len(env.URLs))
	}
}

func TestMediaURLFor_CarouselRejectsTooFewURLs(t *testing.T) {
	item := MediaItem{URLs: []string{"https://example.com/a.jpg"}}
	if _, err := mediaURLFor(item, "carousel"); err == nil {
		t.Error("expected an error for a carousel item with fewer than 2 urls")
	}
}

func TestMediaURLFor_PlainItemReturnsFirstURL(t *testing.T) {
	item := MediaItem{URLs: []string{"https://example.com/a.jpg"}}
	url, err := mediaURLFor(item, "photo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://example.com/a.jpg" {
		t.Errorf("url = %q", url)
	}
}

func TestChunkByWeek_GroupsByISOWeekPreservingOrder(t *testing.T) {
	// 2025-01-01 is a Wednesday in ISO week 2025-W01; 2025-01-08 is in W02.
	w1 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	w1b := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	w2 := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)

	slots := []Slot{
		{ScheduledAt: w1},
		{ScheduledAt: w2},
		{ScheduledAt: w1b},
	}

	chunks := chunkByWeek(slots)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if len(chunks[0]) != 2 {
		t.Errorf("first chunk len = %d, want 2 (both W01 slots)", len(chunks[0]))
	}
	if len(chunks[1]) != 1 {
		t.Errorf("second chunk len = %d, want 1 (the W02 slot)", len(chunks[1]))
	}
}
