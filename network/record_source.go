package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/util"
)

// RecordSource is the migration engine's view of the external
// relational store. The engine neither knows nor cares about the
// schema behind it: just lists of {id, url, targetFolder}, in-place
// URL updates, and a count of fields still referencing legacy hosts.
type RecordSource interface {
	List(ctx context.Context, category string) ([]*media.MigrationRecord, error)
	Update(ctx context.Context, category, recordID, newURL string) error
	CountLegacy(ctx context.Context, knownLegacyHosts []string) (int, error)
}

// RecordSourceClient talks to the record source's admin REST API.
type RecordSourceClient struct {
	APIKey     string
	APIUser    string
	HostURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewRecordSourceClient(hostURL, apiUser, apiKey string, logger *logging.Logger) (*RecordSourceClient, error) {
	if !util.TestsAreRunning() && (apiUser == "" || apiKey == "") {
		panic("Settings RECORD_SOURCE_API_USER and RECORD_SOURCE_API_KEY cannot be empty.")
	}
	return &RecordSourceClient{
		APIKey:  apiKey,
		APIUser: apiUser,
		HostURL: strings.TrimRight(hostURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type mediaRecordJSON struct {
	ID           string `json:"id"`
	TargetFolder string `json:"target_folder"`
	URL          string `json:"url"`
}

// List returns all media records in the given category whose URL
// field is populated.
func (client *RecordSourceClient) List(ctx context.Context, category string) ([]*media.MigrationRecord, error) {
	relativeURL := fmt.Sprintf("/admin-api/v1/media-records?category=%s", url.QueryEscape(category))
	body, err := client.doRequest(ctx, "GET", relativeURL, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]*mediaRecordJSON, 0)
	err = json.Unmarshal(body, &rows)
	if err != nil {
		return nil, fmt.Errorf("Record source returned unparsable list for %s: %v", category, err)
	}
	records := make([]*media.MigrationRecord, 0, len(rows))
	for _, row := range rows {
		if row.URL == "" {
			continue
		}
		records = append(records, &media.MigrationRecord{
			ID:           row.ID,
			SourceURL:    row.URL,
			TargetFolder: row.TargetFolder,
		})
	}
	return records, nil
}

// Update rewrites one record's URL field to newURL.
func (client *RecordSourceClient) Update(ctx context.Context, category, recordID, newURL string) error {
	relativeURL := fmt.Sprintf("/admin-api/v1/media-records/%s?category=%s",
		url.PathEscape(recordID), url.QueryEscape(category))
	payload, err := json.Marshal(map[string]string{"url": newURL})
	if err != nil {
		return err
	}
	_, err = client.doRequest(ctx, "PATCH", relativeURL, payload)
	return err
}

// CountLegacy returns how many URL fields across all categories still
// reference one of the known legacy hosts. Used by the post-run
// verification pass.
func (client *RecordSourceClient) CountLegacy(ctx context.Context, knownLegacyHosts []string) (int, error) {
	relativeURL := fmt.Sprintf("/admin-api/v1/media-records/legacy-count?hosts=%s",
		url.QueryEscape(strings.Join(knownLegacyHosts, ",")))
	body, err := client.doRequest(ctx, "GET", relativeURL, nil)
	if err != nil {
		return 0, err
	}
	counted := struct {
		Count int `json:"count"`
	}{}
	err = json.Unmarshal(body, &counted)
	if err != nil {
		return 0, fmt.Errorf("Record source returned unparsable legacy count: %v", err)
	}
	return counted.Count, nil
}

func (client *RecordSourceClient) doRequest(ctx context.Context, method, relativeURL string, payload []byte) ([]byte, error) {
	absoluteURL := client.HostURL + relativeURL
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, absoluteURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("X-Media-API-User", client.APIUser)
	req.Header.Add("X-Media-API-Key", client.APIKey)
	if payload != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("%s %s failed", method, absoluteURL), err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("%s %s returned status %d", method, absoluteURL, resp.StatusCode), nil)
	}
	return body, nil
}
