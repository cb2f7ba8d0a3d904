package media

import (
	"time"
)

// StoredObjectRef is the permanent record of one uploaded object.
// URL is the canonical (non-signed) address; Key is what the store
// needs for presigning and deletion. Created once at upload time and
// immutable after that. Deleting the underlying object when the
// owning record goes away is the caller's responsibility.
type StoredObjectRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// PresignedURL is a time-limited signed URL for one object. Derived,
// never persisted. Always recomputed from a StoredObjectRef.
type PresignedURL struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     string    `json:"value"`
}

// Expired returns true once now has reached the URL's expiry.
func (p *PresignedURL) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PresignedUpload describes a direct-from-client upload: the client
// PUTs bytes to UploadURL, after which the object is addressable at
// URL with store key Key.
type PresignedUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	URL       string `json:"url"`
}
