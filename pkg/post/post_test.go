package post

import "testing"

func TestMarshalParseCarouselEnvelope_RoundTrips(t *testing.T) {
	urls := []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}
	raw, err := MarshalCarouselEnvelope(urls)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	env, ok := ParseCarouselEnvelope(raw)
	if !ok {
		t.Fatal("expected ok=true for a carousel envelope")
	}
	if env.Type != "carousel" {
		t.Errorf("type = %q, want carousel", env.Type)
	}
	if len(env.URLs) != 2 || env.URLs[0] != urls[0] || env.URLs[1] != urls[1] {
		t.Errorf("urls = %v, want %v", env.URLs, urls)
	}
}

func TestParseCarouselEnvelope_RejectsPlainURL(t *testing.T) {
	if _, ok := ParseCarouselEnvelope("https://example.com/photo.jpg"); ok {
		t.Error("expected ok=false for a plain URL")
	}
}

func TestParseCarouselEnvelope_RejectsGarbage(t *testing.T) {
	if _, ok := ParseCarouselEnvelope("{not json"); ok {
		t.Error("expected ok=false for invalid JSON")
	}
}

func TestType_IsValid(t *testing.T) {
	for _, typ := range ValidTypes {
		if !typ.IsValid() {
			t.Errorf("%s: expected IsValid() true", typ)
		}
	}
	if Type("story").IsValid() {
		t.Error("story: expected IsValid() false")
	}
}

func TestPost_ContainerIDAndPlatformMediaID(t *testing.T) {
	p := Post{}
	if got := p.ContainerID(); got != "" {
		t.Errorf("ContainerID() on empty result = %q, want empty", got)
	}

	withContainer := Post{PublishResult: []byte(`{"container_id":"c-1"}`)}
	if got := withContainer.ContainerID(); got != "c-1" {
		t.Errorf("ContainerID() = %q, want c-1", got)
	}
	if got := withContainer.PlatformMediaID(); got != "" {
		t.Errorf("PlatformMediaID() = %q, want empty", got)
	}

	published := Post{PublishResult: []byte(`{"container_id":"c-1","platform_media_id":"m-1"}`)}
	if got := published.PlatformMediaID(); got != "m-1" {
		t.Errorf("PlatformMediaID() = %q, want m-1", got)
	}
}

func TestStatus_TerminalClassification(t *testing.T) {
	for _, s := range []Status{StatusPosted, StatusFailed, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s: expected terminal", s)
		}
	}
	for _, s := range []Status{StatusScheduled, StatusLeased, StatusPublishing} {
		if s.IsTerminal() {
			t.Errorf("%s: expected non-terminal", s)
		}
	}
}
