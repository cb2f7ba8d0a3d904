package testutil

import (
	"net/http/httptest"
	"strings"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// MediaBucket is the bucket the in-process S3 serves.
const MediaBucket = "pawgram-media-test"

// S3Server is an in-memory S3 for storage client tests, so Put,
// Delete and Stat can run without a real store.
type S3Server struct {
	URL    string
	server *httptest.Server
}

func NewS3Server() *S3Server {
	backend := s3mem.New()
	backend.CreateBucket(MediaBucket)
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())
	return &S3Server{
		URL:    server.URL,
		server: server,
	}
}

// Host returns the host:port the storage client should dial.
func (s *S3Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

func (s *S3Server) Close() {
	s.server.Close()
}
