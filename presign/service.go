// Package presign is the read side of the media subsystem: it turns
// arbitrary media URLs into URLs a client can actually fetch, minting
// short-lived signed links for anything that lives in our private
// bucket and passing everything else through untouched.
package presign

import (
	"context"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/storeurl"
)

// Signer is the slice of the storage client this package needs.
type Signer interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*media.PresignedURL, error)
}

// Service resolves media URLs. Resolution is deliberately
// unauthenticated: the bucket's real access control is the presigning
// step itself, and the minted link is treated as no more sensitive
// than an ordinary public image URL. That is a product trust
// decision, not an oversight.
type Service struct {
	DefaultTTL time.Duration
	codec      *storeurl.Codec
	logger     *logging.Logger
	signer     Signer
}

func NewService(codec *storeurl.Codec, signer Signer, defaultTTL time.Duration, logger *logging.Logger) *Service {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Service{
		DefaultTTL: defaultTTL,
		codec:      codec,
		logger:     logger,
		signer:     signer,
	}
}

// Resolve returns a URL the caller can fetch directly: mediaURL
// itself when it is not store-private (external hosts and
// already-signed links pass through unchanged), otherwise a freshly
// minted signed URL good for ttl. Pass ttl <= 0 for the default.
func (s *Service) Resolve(ctx context.Context, mediaURL string, ttl time.Duration) (string, error) {
	if mediaURL == "" {
		return "", media.NewError(media.ErrInvalidInput, "Media URL is required", nil)
	}
	if !s.codec.IsStorePrivateURL(mediaURL) {
		return mediaURL, nil
	}
	key, ok := s.codec.ExtractKey(mediaURL)
	if !ok {
		return "", media.NewError(media.ErrMalformedStoreURL,
			"URL matches our store but contains no key: "+mediaURL, nil)
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	presigned, err := s.signer.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	return presigned.Value, nil
}
