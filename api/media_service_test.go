package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/op/go-logging"
	"github.com/pawgram/media-services/api"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/storeurl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCodec = storeurl.NewCodec("pawgram-media-test", "us-east-1")

const privateURL = "https://pawgram-media-test.s3.us-east-1.amazonaws.com/users/1712000000000-avatar.png"

type storedPut struct {
	ContentType string
	FileName    string
	Folder      string
	Size        int
}

type fakeObjectStore struct {
	PresignGetCalls int
	PutErr          error
	Puts            []storedPut
	StatErr         error
	StatRelease     chan struct{}
	StatStarted     chan struct{}
}

func (s *fakeObjectStore) Put(ctx context.Context, data []byte, fileName, contentType, folder string) (*media.StoredObjectRef, error) {
	if s.PutErr != nil {
		return nil, s.PutErr
	}
	s.Puts = append(s.Puts, storedPut{
		ContentType: contentType,
		FileName:    fileName,
		Folder:      folder,
		Size:        len(data),
	})
	key := folder + "/1712000000000-" + fileName
	return &media.StoredObjectRef{Key: key, URL: testCodec.URLFor(key)}, nil
}

func (s *fakeObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (*media.PresignedURL, error) {
	s.PresignGetCalls++
	return &media.PresignedURL{
		ExpiresAt: time.Now().Add(ttl),
		Value:     "https://signed.example/" + key,
	}, nil
}

func (s *fakeObjectStore) PresignPut(ctx context.Context, fileName, contentType, folder string, ttl time.Duration) (*media.PresignedUpload, error) {
	key := folder + "/1712000000000-" + fileName
	return &media.PresignedUpload{
		Key:       key,
		UploadURL: "https://signed.example/upload/" + key,
		URL:       testCodec.URLFor(key),
	}, nil
}

func (s *fakeObjectStore) StatObject(ctx context.Context, key string) (minio.ObjectInfo, error) {
	if s.StatStarted != nil {
		s.StatStarted <- struct{}{}
		<-s.StatRelease
	}
	if s.StatErr != nil {
		return minio.ObjectInfo{}, s.StatErr
	}
	return minio.ObjectInfo{Key: key}, nil
}

func newTestService(store *fakeObjectStore) *api.MediaService {
	logger := logging.MustGetLogger("api_test")
	return api.NewMediaServiceWithStore(store, testCodec, 0, 128*1024*1024,
		time.Hour, 50*time.Minute, logger)
}

func getJson(t *testing.T, handler http.Handler, url string, target interface{}) int {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", url, nil))
	if target != nil {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), target))
	}
	return recorder.Code
}

func TestPresignedEndpoint(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	response := make(map[string]string)
	code := getJson(t, handler, "/images/presigned?url="+privateURL, &response)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://signed.example/users/1712000000000-avatar.png", response["url"])
	assert.Equal(t, 1, store.PresignGetCalls)
}

func TestPresignedEndpointRequiresURL(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	response := make(map[string]string)
	code := getJson(t, handler, "/images/presigned", &response)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, response["error"], "required")
}

func TestPresignedEndpointPassesThroughForeignURLs(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	external := "https://cdn.partner.example/pic.jpg"
	response := make(map[string]string)
	code := getJson(t, handler, "/images/presigned?url="+external, &response)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, external, response["url"])
	assert.Equal(t, 0, store.PresignGetCalls)
}

func TestPresignedEndpointMissingObject(t *testing.T) {
	store := &fakeObjectStore{
		StatErr: media.NewError(media.ErrNotFound, "no such object", nil),
	}
	handler := newTestService(store).Handler()

	response := make(map[string]string)
	code := getJson(t, handler, "/images/presigned?url="+privateURL, &response)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, response["error"])
	assert.Equal(t, 0, store.PresignGetCalls)
}

// Two clients asking for the same hot image at the same time must
// both get the signed URL. Neither request is "newer" than the other;
// they share one resolve.
func TestPresignedEndpointConcurrentClients(t *testing.T) {
	store := &fakeObjectStore{
		StatRelease: make(chan struct{}),
		StatStarted: make(chan struct{}, 2),
	}
	handler := newTestService(store).Handler()

	codes := make(chan int, 2)
	request := func() {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/images/presigned?url="+privateURL, nil))
		codes <- recorder.Code
	}

	go request()
	<-store.StatStarted // first resolve is in flight
	go request()
	// Let the second request join the in-flight resolve.
	time.Sleep(20 * time.Millisecond)
	close(store.StatRelease)

	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, 1, store.PresignGetCalls)
}

func multipartUpload(t *testing.T, fileName, folder, contents string) *http.Request {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	if folder != "" {
		require.NoError(t, writer.WriteField("folder", folder))
	}
	require.NoError(t, writer.Close())
	request := httptest.NewRequest("POST", "/images/upload", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func TestUploadEndpoint(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartUpload(t, "kitten.png", constants.FolderPets, "png-bytes"))
	assert.Equal(t, http.StatusOK, recorder.Code)

	response := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "image/png", response["type"])
	assert.Regexp(t, `amazonaws\.com/pets/\d+-kitten\.png$`, response["url"])

	require.Len(t, store.Puts, 1)
	assert.Equal(t, constants.FolderPets, store.Puts[0].Folder)
	assert.Equal(t, len("png-bytes"), store.Puts[0].Size)
}

func TestUploadEndpointDefaultsFolder(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartUpload(t, "pic.jpg", "", "jpg"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, store.Puts, 1)
	assert.Equal(t, constants.FolderUploads, store.Puts[0].Folder)
}

func TestUploadEndpointRejectsDisallowedTypes(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, multipartUpload(t, "evil.exe", "", "MZ"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	response := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, false, response["success"])
	assert.Contains(t, response["error"], "not allowed")
	assert.Empty(t, store.Puts)
}

func TestUploadEndpointRequiresFile(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	request := httptest.NewRequest("POST", "/images/upload", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPresignUploadEndpoint(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	request := httptest.NewRequest("POST",
		"/images/presign-upload?fileName=toy.jpg&folder=marketplace/products", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)

	response := make(map[string]string)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "marketplace/products/1712000000000-toy.jpg", response["key"])
	assert.Contains(t, response["uploadUrl"], "signed.example/upload/")
	assert.Regexp(t, `amazonaws\.com/marketplace/products/`, response["url"])
}

func TestPresignUploadEndpointRequiresFileName(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	request := httptest.NewRequest("POST", "/images/presign-upload", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPing(t *testing.T) {
	store := &fakeObjectStore{}
	handler := newTestService(store).Handler()

	response := make(map[string]bool)
	code := getJson(t, handler, "/ping", &response)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, response["ok"])
}
