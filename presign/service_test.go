package presign_test

import (
	"context"
	"testing"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/presign"
	"github.com/pawgram/media-services/storeurl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCodec = storeurl.NewCodec("pawgram-media", "us-east-1")

func testLogger() *logging.Logger {
	return logging.MustGetLogger("presign_test")
}

type fakeSigner struct {
	calls   int
	err     error
	lastKey string
	lastTTL time.Duration
}

func (f *fakeSigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (*media.PresignedURL, error) {
	f.calls++
	f.lastKey = key
	f.lastTTL = ttl
	if f.err != nil {
		return nil, f.err
	}
	return &media.PresignedURL{
		ExpiresAt: time.Now().Add(ttl),
		Value:     "https://pawgram-media.s3.us-east-1.amazonaws.com/" + key + "?X-Amz-Signature=fake",
	}, nil
}

func TestResolveEmptyURL(t *testing.T) {
	signer := &fakeSigner{}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	resolved, err := service.Resolve(context.Background(), "", 0)
	assert.Empty(t, resolved)
	require.NotNil(t, err)
	assert.Equal(t, media.ErrInvalidInput, media.KindOf(err))
	assert.Equal(t, 0, signer.calls)
}

// URLs that aren't ours pass through exactly, with no signing call.
func TestResolvePassThrough(t *testing.T) {
	signer := &fakeSigner{}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	urls := []string{
		"https://legacy.example.com/uploads/f1.png",
		"https://other-bucket.s3.us-east-1.amazonaws.com/f1.png",
		"https://pawgram-media.s3.us-east-1.amazonaws.com/users/f1.png?X-Amz-Signature=already",
	}
	for _, u := range urls {
		resolved, err := service.Resolve(context.Background(), u, 0)
		require.Nil(t, err, u)
		assert.Equal(t, u, resolved, u)
	}
	assert.Equal(t, 0, signer.calls)
}

func TestResolveStorePrivate(t *testing.T) {
	signer := &fakeSigner{}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	resolved, err := service.Resolve(context.Background(),
		"https://pawgram-media.s3.us-east-1.amazonaws.com/users/1700-f1.png", 0)
	require.Nil(t, err)
	assert.Contains(t, resolved, "X-Amz-Signature")
	assert.Equal(t, 1, signer.calls)
	assert.Equal(t, "users/1700-f1.png", signer.lastKey)
	assert.Equal(t, time.Hour, signer.lastTTL)
}

func TestResolveCustomTTL(t *testing.T) {
	signer := &fakeSigner{}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	_, err := service.Resolve(context.Background(),
		"store://pawgram-media/posts/1700-f2.mp4", 5*time.Minute)
	require.Nil(t, err)
	assert.Equal(t, 5*time.Minute, signer.lastTTL)
}

func TestResolveMalformedStoreURL(t *testing.T) {
	signer := &fakeSigner{}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	// Our host, but no key
	resolved, err := service.Resolve(context.Background(),
		"https://pawgram-media.s3.us-east-1.amazonaws.com/", 0)
	assert.Empty(t, resolved)
	require.NotNil(t, err)
	assert.Equal(t, media.ErrMalformedStoreURL, media.KindOf(err))
	assert.Equal(t, 0, signer.calls)
}

func TestResolvePropagatesSignerError(t *testing.T) {
	signer := &fakeSigner{
		err: media.NewError(media.ErrNotFound, "no such key", nil),
	}
	service := presign.NewService(testCodec, signer, time.Hour, testLogger())
	resolved, err := service.Resolve(context.Background(),
		"https://pawgram-media.s3.us-east-1.amazonaws.com/users/gone.png", 0)
	assert.Empty(t, resolved)
	require.NotNil(t, err)
	assert.Equal(t, media.ErrNotFound, media.KindOf(err))
}
