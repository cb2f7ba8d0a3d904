package network

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
	"github.com/pawgram/media-services/models/media"
)

// StorageClient wraps the object store's put/delete/presign
// primitives. It is stateless apart from its minio connection and is
// safe for concurrent use. The bucket is always private: nothing this
// client uploads ever gets a public-read ACL.
type StorageClient struct {
	Bucket string
	Region string
	client *minio.Client
	logger *logging.Logger
	now    func() time.Time
}

// NewStorageClient connects to the store at host with the given
// credentials. Missing credentials are a CredentialsMissing error,
// never a silent fallback. useSSL is false only for dev and test
// configs talking to localhost.
func NewStorageClient(host, keyID, secretKey, bucket, region string, useSSL bool, logger *logging.Logger) (*StorageClient, error) {
	if keyID == "" || secretKey == "" {
		return nil, media.NewError(media.ErrCredentialsMissing,
			"S3 key and secret are required", nil)
	}
	if bucket == "" {
		return nil, media.NewError(media.ErrCredentialsMissing,
			"S3 bucket name is required", nil)
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(keyID, secretKey, ""),
		Region: region,
		Secure: useSSL,
	})
	if err != nil {
		return nil, media.NewError(media.ErrCredentialsMissing,
			fmt.Sprintf("Cannot create S3 client for host %s", host), err)
	}
	return &StorageClient{
		Bucket: bucket,
		Region: region,
		client: client,
		logger: logger,
		now:    time.Now,
	}, nil
}

// KeyFor builds the store key for a new upload:
// <folder>/<unix_millis>-<fileName>. The millisecond timestamp plus
// original filename is unique enough in practice; we do not defend
// against collisions.
func (sc *StorageClient) KeyFor(folder, fileName string) string {
	return fmt.Sprintf("%s/%d-%s", strings.Trim(folder, "/"), sc.now().UnixMilli(), fileName)
}

// CanonicalURL returns the canonical (non-signed) address of the
// object at key.
func (sc *StorageClient) CanonicalURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", sc.Bucket, sc.Region, key)
}

// Put uploads data to the private bucket and returns the new object's
// permanent reference.
func (sc *StorageClient) Put(ctx context.Context, data []byte, fileName, contentType, folder string) (*media.StoredObjectRef, error) {
	if fileName == "" {
		return nil, media.NewError(media.ErrInvalidInput,
			"File name is required for an upload", nil)
	}
	key := sc.KeyFor(folder, fileName)
	_, err := sc.client.PutObject(ctx, sc.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, media.NewError(media.ErrUploadFailed,
			fmt.Sprintf("Error uploading %s to bucket %s", key, sc.Bucket), err)
	}
	sc.logger.Infof("Uploaded %s (%d bytes, %s)", key, len(data), contentType)
	return &media.StoredObjectRef{
		Key: key,
		URL: sc.CanonicalURL(key),
	}, nil
}

// Delete removes the object at key. Deleting a key that does not
// exist is not an error at this layer.
func (sc *StorageClient) Delete(ctx context.Context, key string) error {
	err := sc.client.RemoveObject(ctx, sc.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return media.NewError(media.ErrUploadFailed,
			fmt.Sprintf("Error deleting %s from bucket %s", key, sc.Bucket), err)
	}
	return nil
}

// PresignGet mints a time-limited read URL for key. This is local
// cryptographic signing over held credentials; no network round-trip
// to the store.
func (sc *StorageClient) PresignGet(ctx context.Context, key string, ttl time.Duration) (*media.PresignedURL, error) {
	if key == "" {
		return nil, media.NewError(media.ErrMalformedStoreURL,
			"Cannot presign an empty key", nil)
	}
	signedURL, err := sc.client.PresignedGetObject(ctx,
		sc.Bucket, key, ttl, url.Values{})
	if err != nil {
		return nil, media.NewError(media.ErrMalformedStoreURL,
			fmt.Sprintf("Error presigning GET for %s", key), err)
	}
	return &media.PresignedURL{
		ExpiresAt: sc.now().Add(ttl),
		Value:     signedURL.String(),
	}, nil
}

// PresignPut mints a time-limited upload URL so a client can push
// bytes straight to the store. Mirrors Put, but the byte transfer is
// deferred to the caller.
func (sc *StorageClient) PresignPut(ctx context.Context, fileName, contentType, folder string, ttl time.Duration) (*media.PresignedUpload, error) {
	if fileName == "" {
		return nil, media.NewError(media.ErrInvalidInput,
			"File name is required for a presigned upload", nil)
	}
	key := sc.KeyFor(folder, fileName)
	uploadURL, err := sc.client.PresignedPutObject(ctx, sc.Bucket, key, ttl)
	if err != nil {
		return nil, media.NewError(media.ErrMalformedStoreURL,
			fmt.Sprintf("Error presigning PUT for %s", key), err)
	}
	return &media.PresignedUpload{
		Key:       key,
		UploadURL: uploadURL.String(),
		URL:       sc.CanonicalURL(key),
	}, nil
}

// StatObject reports whether the object at key exists, surfacing the
// store's NoSuchKey as a typed NotFound error.
func (sc *StorageClient) StatObject(ctx context.Context, key string) (minio.ObjectInfo, error) {
	info, err := sc.client.StatObject(ctx, sc.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return info, media.NewError(media.ErrNotFound,
				fmt.Sprintf("No object in bucket %s at key %s", sc.Bucket, key), err)
		}
		return info, media.NewError(media.ErrUploadFailed,
			fmt.Sprintf("Error checking %s in bucket %s", key, sc.Bucket), err)
	}
	return info, nil
}
