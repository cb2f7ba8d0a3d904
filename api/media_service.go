// Package api is the public HTTP face of the media subsystem. It
// serves presigned read URLs for stored media, accepts direct and
// presigned uploads, and answers health checks.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/op/go-logging"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/models/common"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/presign"
	"github.com/pawgram/media-services/storeurl"
	"github.com/pawgram/media-services/util"
)

// ObjectStore is the slice of the storage client the HTTP handlers
// use.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, fileName, contentType, folder string) (*media.StoredObjectRef, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (*media.PresignedURL, error)
	PresignPut(ctx context.Context, fileName, contentType, folder string, ttl time.Duration) (*media.PresignedUpload, error)
	StatObject(ctx context.Context, key string) (minio.ObjectInfo, error)
}

// MediaService answers requests from the app backends. The read path
// carries no auth: presigned GET URLs are themselves the capability,
// and they expire.
type MediaService struct {
	MaxUploadSize int64
	PresignTTL    time.Duration
	cache         *presign.URLCache
	codec         *storeurl.Codec
	logger        *logging.Logger
	port          int
	store         ObjectStore
}

// NewMediaService wires the service from the app context, building
// the resolver and its cache internally.
func NewMediaService(appCtx *common.Context) *MediaService {
	return NewMediaServiceWithStore(
		appCtx.StorageClient,
		appCtx.Codec,
		appCtx.Config.HTTPPort,
		appCtx.Config.MaxUploadSize,
		appCtx.Config.PresignTTL,
		appCtx.Config.CacheTTL,
		appCtx.Logger,
	)
}

// NewMediaServiceWithStore exists so tests can substitute the store.
func NewMediaServiceWithStore(store ObjectStore, codec *storeurl.Codec, port int, maxUploadSize int64, presignTTL, cacheTTL time.Duration, logger *logging.Logger) *MediaService {
	service := &MediaService{
		MaxUploadSize: maxUploadSize,
		PresignTTL:    presignTTL,
		codec:         codec,
		logger:        logger,
		port:          port,
		store:         store,
	}
	resolver := presign.NewService(codec, store, presignTTL, logger)
	service.cache = presign.NewURLCache(codec, service.resolveVerified(resolver), presignTTL, cacheTTL, logger)
	return service
}

// resolveVerified stats the object before signing for it, so a URL
// pointing at a deleted or never-uploaded object comes back as
// NotFound instead of a signed URL that will 403 in the browser.
// Only cache misses pay the extra round trip.
func (svc *MediaService) resolveVerified(resolver *presign.Service) presign.ResolveFunc {
	return func(ctx context.Context, sourceURL string, ttl time.Duration) (string, error) {
		if svc.codec.IsStorePrivateURL(sourceURL) {
			if key, ok := svc.codec.ExtractKey(sourceURL); ok {
				if _, err := svc.store.StatObject(ctx, key); err != nil {
					return "", err
				}
			}
		}
		return resolver.Resolve(ctx, sourceURL, ttl)
	}
}

// Handler returns the service's routes. Split out from Serve so
// httptest can drive the handlers directly.
func (svc *MediaService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/presigned", svc.makePresignedHandler())
	mux.HandleFunc("/images/upload", svc.makeUploadHandler())
	mux.HandleFunc("/images/presign-upload", svc.makePresignUploadHandler())
	mux.HandleFunc("/ping", svc.makePingHandler())
	return mux
}

// Serve starts the HTTP server. It blocks.
func (svc *MediaService) Serve() error {
	listenAddr := fmt.Sprintf(":%d", svc.port)
	svc.logger.Infof("Media API listening on %s", listenAddr)
	return http.ListenAndServe(listenAddr, svc.Handler())
}

type presignedResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	URL     string `json:"url,omitempty"`
}

type presignUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	URL       string `json:"url"`
}

func (svc *MediaService) makePresignedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaURL := r.FormValue("url")
		if mediaURL == "" {
			writeJson(w, http.StatusBadRequest,
				&errorResponse{Error: "Param 'url' is required."})
			return
		}
		// GetShared: concurrent requests for a hot image all receive
		// the one resolve's result.
		presignedURL, err := svc.cache.GetShared(r.Context(), mediaURL)
		if err != nil {
			status := http.StatusInternalServerError
			if media.KindOf(err) == media.ErrNotFound {
				status = http.StatusNotFound
			}
			svc.logger.Errorf("[%s] Cannot resolve %s: %v", r.RemoteAddr, mediaURL, err)
			writeJson(w, status, &errorResponse{Error: err.Error()})
			return
		}
		if presignedURL == nil {
			writeJson(w, http.StatusBadRequest,
				&errorResponse{Error: "Param 'url' is required."})
			return
		}
		writeJson(w, http.StatusOK, &presignedResponse{URL: presignedURL.Value})
	}
}

func (svc *MediaService) makeUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJson(w, http.StatusMethodNotAllowed,
				&uploadResponse{Success: false, Error: "POST only."})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, svc.MaxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJson(w, http.StatusBadRequest,
				&uploadResponse{Success: false, Error: "Param 'file' is required."})
			return
		}
		defer file.Close()
		folder := r.FormValue("folder")
		if folder == "" {
			folder = constants.FolderUploads
		}
		contentType := util.ContentTypeFor(header.Filename)
		if !util.StringListContains(constants.AllowedUploadTypes, contentType) {
			writeJson(w, http.StatusBadRequest, &uploadResponse{
				Success: false,
				Error:   fmt.Sprintf("Content type %s is not allowed.", contentType),
			})
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeJson(w, http.StatusBadRequest,
				&uploadResponse{Success: false, Error: err.Error()})
			return
		}
		ref, err := svc.store.Put(r.Context(), data, header.Filename, contentType, folder)
		if err != nil {
			svc.logger.Errorf("[%s] Upload of %s failed: %v", r.RemoteAddr, header.Filename, err)
			writeJson(w, http.StatusInternalServerError,
				&uploadResponse{Success: false, Error: err.Error()})
			return
		}
		svc.logger.Infof("[%s] Uploaded %s (%d bytes) to %s", r.RemoteAddr,
			header.Filename, len(data), ref.Key)
		writeJson(w, http.StatusOK, &uploadResponse{
			Success: true,
			Type:    contentType,
			URL:     ref.URL,
		})
	}
}

func (svc *MediaService) makePresignUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJson(w, http.StatusMethodNotAllowed,
				&errorResponse{Error: "POST only."})
			return
		}
		fileName := r.FormValue("fileName")
		if fileName == "" {
			writeJson(w, http.StatusBadRequest,
				&errorResponse{Error: "Param 'fileName' is required."})
			return
		}
		folder := r.FormValue("folder")
		if folder == "" {
			folder = constants.FolderUploads
		}
		contentType := util.ContentTypeFor(fileName)
		if !util.StringListContains(constants.AllowedUploadTypes, contentType) {
			writeJson(w, http.StatusBadRequest, &errorResponse{
				Error: fmt.Sprintf("Content type %s is not allowed.", contentType),
			})
			return
		}
		upload, err := svc.store.PresignPut(r.Context(), fileName, contentType, folder, svc.PresignTTL)
		if err != nil {
			svc.logger.Errorf("[%s] Cannot presign upload of %s: %v", r.RemoteAddr, fileName, err)
			writeJson(w, http.StatusInternalServerError, &errorResponse{Error: err.Error()})
			return
		}
		writeJson(w, http.StatusOK, &presignUploadResponse{
			Key:       upload.Key,
			UploadURL: upload.UploadURL,
			URL:       upload.URL,
		})
	}
}

func (svc *MediaService) makePingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	jsonResponse, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonResponse)
}
