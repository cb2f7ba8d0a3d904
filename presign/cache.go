package presign

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/storeurl"
)

// ErrSuperseded means a newer Get for the same source URL started
// while this one's resolve was in flight. Only the newest request's
// result is ever applied; this one's result was discarded.
var ErrSuperseded = errors.New("presign: resolve superseded by a newer request")

// ResolveFunc is what the cache calls on a miss. Service.Resolve
// satisfies it.
type ResolveFunc func(ctx context.Context, sourceURL string, ttl time.Duration) (string, error)

type inflightResolve struct {
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
	generation uint64
	result     *media.PresignedURL
	shared     bool
}

// URLCache sits between renderers and the presign service so the
// same source URL is not re-resolved on every render. Entries expire
// before the signed URL they hold does, so callers never receive a
// link that is about to die. Construct one per process and share it;
// all map access is mutex-guarded.
type URLCache struct {
	// Now returns the current time. Tests replace it to force expiry.
	Now func() time.Time

	cacheTTL   time.Duration
	codec      *storeurl.Codec
	entries    map[string]*media.PresignedURL
	generation uint64
	inflight   map[string]*inflightResolve
	logger     *logging.Logger
	mutex      sync.Mutex
	resolve    ResolveFunc
	signTTL    time.Duration
}

// NewURLCache builds a cache that signs for signTTL and caches for
// cacheTTL. cacheTTL must be shorter than signTTL; anything else is
// clamped to five sixths of signTTL (50 minutes of an hour).
func NewURLCache(codec *storeurl.Codec, resolve ResolveFunc, signTTL, cacheTTL time.Duration, logger *logging.Logger) *URLCache {
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	if cacheTTL <= 0 || cacheTTL >= signTTL {
		cacheTTL = signTTL * 5 / 6
	}
	return &URLCache{
		Now:      time.Now,
		cacheTTL: cacheTTL,
		codec:    codec,
		entries:  make(map[string]*media.PresignedURL),
		inflight: make(map[string]*inflightResolve),
		logger:   logger,
		resolve:  resolve,
		signTTL:  signTTL,
	}
}

// Get returns a fetchable URL for sourceURL. An empty sourceURL
// returns (nil, nil): the "no image" state. URLs that are not
// store-private are cached once with no expiry and returned as-is.
// Store-private URLs are resolved through the presign service; a
// live cached entry short-circuits the call entirely.
//
// If a Get for the same source URL is already resolving, that older
// resolve is cancelled and its result discarded. Rapidly repeated
// lookups (a component remounting) therefore can never leave a stale
// response cached over a newer one. These latest-wins semantics suit
// a single caller re-requesting its own key; when concurrent lookups
// are independent clients, use GetShared.
func (c *URLCache) Get(ctx context.Context, sourceURL string) (*media.PresignedURL, error) {
	if sourceURL == "" {
		return nil, nil
	}
	c.mutex.Lock()
	if entry, ok := c.entries[sourceURL]; ok && !entry.Expired(c.Now()) {
		c.mutex.Unlock()
		return entry, nil
	}
	if !c.codec.IsStorePrivateURL(sourceURL) {
		entry := &media.PresignedURL{Value: sourceURL}
		c.entries[sourceURL] = entry
		c.mutex.Unlock()
		return entry, nil
	}
	if prior, ok := c.inflight[sourceURL]; ok {
		prior.cancel()
	}
	resolveCtx, cancel := context.WithCancel(ctx)
	c.generation++
	generation := c.generation
	c.inflight[sourceURL] = &inflightResolve{
		cancel:     cancel,
		generation: generation,
	}
	c.mutex.Unlock()

	value, err := c.resolve(resolveCtx, sourceURL, c.signTTL)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	current, ok := c.inflight[sourceURL]
	isLatest := ok && current.generation == generation
	if isLatest {
		delete(c.inflight, sourceURL)
		cancel()
	}
	if !isLatest {
		return nil, ErrSuperseded
	}
	if err != nil {
		// Failures are never cached
		return nil, err
	}
	entry := &media.PresignedURL{
		ExpiresAt: c.Now().Add(c.cacheTTL),
		Value:     value,
	}
	c.entries[sourceURL] = entry
	return entry, nil
}

// GetShared is the server-side counterpart of Get. Concurrent lookups
// for the same source URL are distinct clients, every one of whom
// wants the answer: the first caller resolves and the rest join that
// resolve and receive its result. Nothing is ever cancelled or
// discarded here. The resolve runs on its own context so one client
// hanging up cannot fail the others.
func (c *URLCache) GetShared(ctx context.Context, sourceURL string) (*media.PresignedURL, error) {
	if sourceURL == "" {
		return nil, nil
	}
	c.mutex.Lock()
	if entry, ok := c.entries[sourceURL]; ok && !entry.Expired(c.Now()) {
		c.mutex.Unlock()
		return entry, nil
	}
	if !c.codec.IsStorePrivateURL(sourceURL) {
		entry := &media.PresignedURL{Value: sourceURL}
		c.entries[sourceURL] = entry
		c.mutex.Unlock()
		return entry, nil
	}
	if flight, ok := c.inflight[sourceURL]; ok && flight.shared {
		c.mutex.Unlock()
		select {
		case <-flight.done:
			return flight.result, flight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	resolveCtx, cancel := context.WithCancel(context.Background())
	c.generation++
	flight := &inflightResolve{
		cancel:     cancel,
		done:       make(chan struct{}),
		generation: c.generation,
		shared:     true,
	}
	c.inflight[sourceURL] = flight
	c.mutex.Unlock()

	value, err := c.resolve(resolveCtx, sourceURL, c.signTTL)
	cancel()

	c.mutex.Lock()
	if current, ok := c.inflight[sourceURL]; ok && current == flight {
		delete(c.inflight, sourceURL)
	}
	if err != nil {
		// Failures are never cached
		flight.err = err
	} else {
		entry := &media.PresignedURL{
			ExpiresAt: c.Now().Add(c.cacheTTL),
			Value:     value,
		}
		c.entries[sourceURL] = entry
		flight.result = entry
	}
	c.mutex.Unlock()
	close(flight.done)
	return flight.result, flight.err
}

// GetWithFallback never fails: any error state, including the empty
// "no image" URL, comes back as fallbackURL. This is what renderers
// call.
func (c *URLCache) GetWithFallback(ctx context.Context, sourceURL, fallbackURL string) string {
	entry, err := c.Get(ctx, sourceURL)
	if err != nil {
		if c.logger != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Warningf("Falling back for %s: %v", sourceURL, err)
		}
		return fallbackURL
	}
	if entry == nil {
		return fallbackURL
	}
	return entry.Value
}

// Len returns the number of cached entries, live or expired.
func (c *URLCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}
