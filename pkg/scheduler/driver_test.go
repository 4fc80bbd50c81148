package scheduler

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBackoffForRetry_DoublesAndCaps(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{20, 30 * time.Minute}, // shifted past the cap, and past overflow
	}
	for _, tc := range cases {
		if got := backoffForRetry(tc.retryCount); got != tc.want {
			t.Errorf("backoffForRetry(%d) = %v, want %v", tc.retryCount, got, tc.want)
		}
	}
}

func TestWithContainerIDJSON_PreservesExistingMediaID(t *testing.T) {
	existing := json.RawMessage(`{"platform_media_id":"m-1"}`)
	out := withContainerIDJSON(existing, "c-1")

	var got struct {
		ContainerID     string `json:"container_id"`
		PlatformMediaID string `json:"platform_media_id"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ContainerID != "c-1" {
		t.Errorf("container_id = %q, want c-1", got.ContainerID)
	}
	if got.PlatformMediaID != "m-1" {
		t.Errorf("platform_media_id = %q, want m-1 (should be preserved)", got.PlatformMediaID)
	}
}

func TestWithPlatformMediaIDJSON_PreservesExistingContainerID(t *testing.T) {
	existing := json.RawMessage(`{"container_id":"c-1"}`)
	out := withPlatformMediaIDJSON(existing, "m-1")

	var got struct {
		ContainerID     string `json:"container_id"`
		PlatformMediaID string `json:"platform_media_id"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ContainerID != "c-1" {
		t.Errorf("container_id = %q, want c-1 (should be preserved)", got.ContainerID)
	}
	if got.PlatformMediaID != "m-1" {
		t.Errorf("platform_media_id = %q, want m-1", got.PlatformMediaID)
	}
}

func TestMarshalPublishResult_EmptyExisting(t *testing.T) {
	out := marshalPublishResult(nil, "c-1", "")
	var got struct {
		ContainerID string `json:"container_id"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ContainerID != "c-1" {
		t.Errorf("container_id = %q, want c-1", got.ContainerID)
	}
}

func TestClassificationCode_NilError(t *testing.T) {
	if got := classificationCode(nil); got != "internal_error" {
		t.Errorf("classificationCode(nil) = %q, want internal_error", got)
	}
}
