// Package storeurl translates between fully-qualified object URLs and
// store-internal keys, and classifies URLs as ours vs. external. It
// does no I/O.
package storeurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/util"
)

// Codec knows which URLs address objects in our bucket. One Codec is
// built from config at startup and shared freely; it has no mutable
// state.
type Codec struct {
	Bucket string
	Region string
}

func NewCodec(bucket, region string) *Codec {
	return &Codec{
		Bucket: bucket,
		Region: region,
	}
}

// URLFor returns the canonical virtual-hosted-style URL for a key.
// For example, codec.URLFor("users/1700000000000-avatar.png") returns
// https://pawgram-media.s3.us-east-1.amazonaws.com/users/1700000000000-avatar.png
func (c *Codec) URLFor(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.Bucket, c.Region, key)
}

// ExtractKey returns the store-internal key for a URL addressing our
// bucket, in any of the shapes we recognize:
//
//	https://<bucket>.s3.<region>.amazonaws.com/<key>  (virtual-hosted)
//	https://<bucket>.s3.amazonaws.com/<key>           (legacy global endpoint)
//	https://s3.<region>.amazonaws.com/<bucket>/<key>  (path style)
//	https://s3.amazonaws.com/<bucket>/<key>
//	store://<bucket>/<key>
//
// The second return value is false for any URL that does not address
// our bucket. That is a classification, not an error: callers must
// treat it as "not ours".
func (c *Codec) ExtractKey(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme == constants.StoreURLScheme {
		if u.Host != c.Bucket {
			return "", false
		}
		return nonEmptyKey(strings.TrimPrefix(u.Path, "/"))
	}
	host := strings.ToLower(u.Host)
	path := strings.TrimPrefix(u.Path, "/")
	if c.isVirtualHost(host) {
		return nonEmptyKey(path)
	}
	if c.isPathStyleHost(host) {
		bucketPrefix := c.Bucket + "/"
		if !strings.HasPrefix(path, bucketPrefix) {
			return "", false
		}
		return nonEmptyKey(strings.TrimPrefix(path, bucketPrefix))
	}
	return "", false
}

// IsStorePrivateURL returns true only for URLs that address our
// bucket AND carry no signature query params. A URL that is already
// presigned is public enough as-is; re-signing it would double-sign
// or loop.
func (c *Codec) IsStorePrivateURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !c.hostMatches(u) {
		return false
	}
	query := u.Query()
	return query.Get("X-Amz-Signature") == "" && query.Get("Signature") == ""
}

// IsAlreadyMigrated returns true if the URL's host matches our own
// store domain. The migration engine uses this to skip objects that
// have already been moved.
func (c *Codec) IsAlreadyMigrated(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.hostMatches(u)
}

// IsLegacyHost returns true if the URL's host is one of the known
// source hosts we are migrating away from.
func IsLegacyHost(rawURL string, knownLegacyHosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return util.StringListContainsFold(knownLegacyHosts, u.Host)
}

func (c *Codec) hostMatches(u *url.URL) bool {
	if u.Scheme == constants.StoreURLScheme {
		return u.Host == c.Bucket
	}
	host := strings.ToLower(u.Host)
	if c.isVirtualHost(host) {
		return true
	}
	if c.isPathStyleHost(host) {
		return strings.HasPrefix(strings.TrimPrefix(u.Path, "/"), c.Bucket+"/")
	}
	return false
}

func (c *Codec) isVirtualHost(host string) bool {
	return host == strings.ToLower(fmt.Sprintf("%s.s3.%s.amazonaws.com", c.Bucket, c.Region)) ||
		host == strings.ToLower(fmt.Sprintf("%s.s3.amazonaws.com", c.Bucket))
}

func (c *Codec) isPathStyleHost(host string) bool {
	return host == fmt.Sprintf("s3.%s.amazonaws.com", c.Region) ||
		host == "s3.amazonaws.com"
}

func nonEmptyKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	return key, true
}
