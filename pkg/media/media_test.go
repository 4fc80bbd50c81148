package media

import "testing"

func TestToResponse_OmitsStorageInternals(t *testing.T) {
	a := Asset{
		ID:         7,
		AccountID:  3,
		StoredPath: "/var/data/assets/7.jpg",
		MediaURL:   "https://cdn.example.com/7.jpg",
		Bytes:      1024,
		SHA256:     "deadbeefcafef00d",
		ShortHash:  "deadbeef",
	}

	resp := ToResponse(a)
	if resp.ID != a.ID || resp.AccountID != a.AccountID {
		t.Errorf("id/account mismatch: %+v", resp)
	}
	if resp.MediaURL != a.MediaURL {
		t.Errorf("media url = %q, want %q", resp.MediaURL, a.MediaURL)
	}
	if resp.Bytes != a.Bytes {
		t.Errorf("bytes = %d, want %d", resp.Bytes, a.Bytes)
	}
	if resp.ShortHash != a.ShortHash {
		t.Errorf("short hash = %q, want %q", resp.ShortHash, a.ShortHash)
	}
}
