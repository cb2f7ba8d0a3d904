// Package migration moves legacy-hosted media into our private
// bucket. One Engine run enumerates records per category from the
// external record source, downloads each legacy file, re-uploads it
// through the storage client, and rewrites the source record to the
// new canonical URL, with bounded retry and per-category stats.
package migration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/models/common"
	"github.com/pawgram/media-services/models/media"
	"github.com/pawgram/media-services/network"
	"github.com/pawgram/media-services/storeurl"
	"github.com/pawgram/media-services/util"
)

// Store is the slice of the storage client the engine needs.
type Store interface {
	Put(ctx context.Context, data []byte, fileName, contentType, folder string) (*media.StoredObjectRef, error)
}

// Checkpointer records per-record outcomes so an interrupted run can
// be re-run without redoing finished work. May be nil.
type Checkpointer interface {
	AlreadyMigrated(runID, category, recordID string) bool
	OutcomeSave(outcome *media.RecordOutcome) error
	StatsSave(runID string, stats *media.CategoryStats) error
}

// Publisher pushes outcome events to NSQ. May be nil.
type Publisher interface {
	PublishOutcome(outcome *media.RecordOutcome) error
	PublishSummary(stats *media.MigrationStats) error
}

// Engine is a one-shot batch migrator. Records are processed
// sequentially within a batch and batches are serialized with a
// courtesy pause between them, to bound the load we put on the
// legacy host and the store. A failing record never aborts the
// batch or the run.
type Engine struct {
	// BatchPause is the sleep between batches.
	BatchPause time.Duration
	// BatchSize bounds how many records we process between pauses.
	BatchSize int
	// Categories to migrate, in order.
	Categories []string
	Checkpointer Checkpointer
	Codec        *storeurl.Codec
	HTTPClient   *http.Client
	LegacyHosts  []string
	Logger       *logging.Logger
	// MaxAttempts caps retries per record, guaranteeing termination.
	MaxAttempts int
	Publisher   Publisher
	RecordSource network.RecordSource
	// RetryBase is the backoff unit: attempt n sleeps n * RetryBase.
	RetryBase time.Duration
	RunID     string
	// Sleep is here so tests can run without real delays.
	Sleep func(time.Duration)
	Store  Store
}

// NewEngine wires an engine from the app context. The caller supplies
// the run ID (usually a fresh UUID) so a re-run of an interrupted
// migration can reuse the old ID and pick up its checkpoints.
func NewEngine(appCtx *common.Context, runID string) *Engine {
	var checkpointer Checkpointer
	if appCtx.RedisClient != nil {
		checkpointer = appCtx.RedisClient
	}
	var publisher Publisher
	if appCtx.EventPublisher != nil {
		publisher = appCtx.EventPublisher
	}
	var recordSource network.RecordSource
	if appCtx.RecordSource != nil {
		recordSource = appCtx.RecordSource
	}
	return &Engine{
		BatchPause:   appCtx.Config.MigrationBatchPause,
		BatchSize:    appCtx.Config.MigrationBatchSize,
		Categories:   constants.Categories,
		Checkpointer: checkpointer,
		Codec:        appCtx.Codec,
		HTTPClient:   &http.Client{Timeout: appCtx.Config.DownloadTimeout},
		LegacyHosts:  appCtx.Config.LegacyHosts,
		Logger:       appCtx.Logger,
		MaxAttempts:  appCtx.Config.MigrationMaxAttempts,
		Publisher:    publisher,
		RecordSource: recordSource,
		RetryBase:    appCtx.Config.MigrationRetryBase,
		RunID:        runID,
		Sleep:        time.Sleep,
		Store:        appCtx.StorageClient,
	}
}

func (e *Engine) applyDefaults() {
	if e.BatchSize <= 0 {
		e.BatchSize = 10
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = 3
	}
	if e.BatchPause <= 0 {
		e.BatchPause = 500 * time.Millisecond
	}
	if e.RetryBase <= 0 {
		e.RetryBase = time.Second
	}
	if e.Sleep == nil {
		e.Sleep = time.Sleep
	}
	if e.HTTPClient == nil {
		e.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if len(e.Categories) == 0 {
		e.Categories = constants.Categories
	}
}

// Run migrates every category, then runs the verification pass.
// The returned stats are complete even when err is non-nil: an error
// here means one or more categories could not even be enumerated.
// Per-record failures never surface as an error; they only show up
// in the stats.
func (e *Engine) Run(ctx context.Context) (*media.MigrationStats, error) {
	e.applyDefaults()
	stats := media.NewMigrationStats(e.RunID)
	if e.RecordSource == nil {
		stats.Finish()
		return stats, fmt.Errorf("migration run %s: no record source configured", e.RunID)
	}
	enumErrors := make([]string, 0)
	for _, category := range e.Categories {
		categoryStats, err := e.runCategory(ctx, category)
		if err != nil {
			e.Logger.Errorf("Category %s did not complete: %v", category, err)
			enumErrors = append(enumErrors, fmt.Sprintf("%s: %v", category, err))
		} else {
			e.Logger.Infof("Finished category: %s", categoryStats.String())
		}
		// An interrupted category still reports the records it finished.
		if categoryStats == nil {
			continue
		}
		stats.AddCategory(categoryStats)
		if e.Checkpointer != nil {
			if err := e.Checkpointer.StatsSave(e.RunID, categoryStats); err != nil {
				e.Logger.Warningf("Could not checkpoint stats for %s: %v", category, err)
			}
		}
	}
	e.verify(ctx, stats)
	stats.Finish()
	if e.Publisher != nil {
		if err := e.Publisher.PublishSummary(stats); err != nil {
			e.Logger.Warningf("Could not publish run summary: %v", err)
		}
	}
	if len(enumErrors) > 0 {
		return stats, fmt.Errorf("migration run %s: %s", e.RunID, strings.Join(enumErrors, "; "))
	}
	return stats, nil
}

func (e *Engine) runCategory(ctx context.Context, category string) (*media.CategoryStats, error) {
	records, err := e.RecordSource.List(ctx, category)
	if err != nil {
		return nil, err
	}
	stats := media.NewCategoryStats(category)
	stats.AddTotal(len(records))
	e.Logger.Infof("Category %s: %d records", category, len(records))
	for start := 0; start < len(records); start += e.BatchSize {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		end := start + e.BatchSize
		if end > len(records) {
			end = len(records)
		}
		for _, record := range records[start:end] {
			e.processRecord(ctx, category, stats, record)
		}
		if end < len(records) {
			e.Sleep(e.BatchPause)
		}
	}
	return stats, nil
}

// processRecord handles one record start to finish. All failure paths
// end here: the caller only ever sees counter updates.
func (e *Engine) processRecord(ctx context.Context, category string, stats *media.CategoryStats, record *media.MigrationRecord) {
	if e.Checkpointer != nil && e.Checkpointer.AlreadyMigrated(e.RunID, category, record.ID) {
		e.Logger.Infof("Checkpoint says record %s already migrated, skipping", record.ID)
		stats.AddSkipped()
		e.finishRecord(category, record, constants.OutcomeSkipped, "", 0, "prior pass of this run migrated it")
		return
	}
	if e.Codec.IsAlreadyMigrated(record.SourceURL) {
		stats.AddSkipped()
		e.finishRecord(category, record, constants.OutcomeSkipped, "", 0, "already points at our store")
		return
	}
	if !storeurl.IsLegacyHost(record.SourceURL, e.LegacyHosts) {
		// Never migrate URLs we don't recognize.
		e.Logger.Warningf("Record %s has unrecognized host, leaving untouched: %s",
			record.ID, record.SourceURL)
		stats.AddSkipped()
		e.finishRecord(category, record, constants.OutcomeSkipped, "", 0, "unrecognized host")
		return
	}
	fileName, err := fileNameFromURL(record.SourceURL)
	if err != nil {
		// Retrying can't fix a parse error
		e.Logger.Errorf("Record %s has unusable URL %s: %v", record.ID, record.SourceURL, err)
		stats.AddFailed()
		e.finishRecord(category, record, constants.OutcomeFailed, "", 1, err.Error())
		return
	}

	folder := record.TargetFolder
	if folder == "" {
		// Older records predate per-record folders.
		folder = constants.FolderForCategory[category]
	}
	if folder == "" {
		folder = constants.FolderUploads
	}

	var newURL string
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		attempts = attempt
		newURL, lastErr = e.migrateOnce(ctx, category, record, fileName, folder)
		if lastErr == nil {
			break
		}
		e.Logger.Warningf("Attempt %d/%d failed for record %s: %v",
			attempt, e.MaxAttempts, record.ID, lastErr)
		if !media.IsRetryable(lastErr) {
			break
		}
		if attempt < e.MaxAttempts {
			e.Sleep(e.RetryBase * time.Duration(attempt))
		}
	}
	if lastErr != nil {
		stats.AddFailed()
		e.finishRecord(category, record, constants.OutcomeFailed, "", attempts, lastErr.Error())
		return
	}
	stats.AddMigrated()
	e.finishRecord(category, record, constants.OutcomeMigrated, newURL, attempts, "")
}

// migrateOnce is one download, upload, update attempt.
func (e *Engine) migrateOnce(ctx context.Context, category string, record *media.MigrationRecord, fileName, folder string) (string, error) {
	data, err := e.download(ctx, record.SourceURL)
	if err != nil {
		return "", err
	}
	contentType := util.ContentTypeFor(fileName)
	ref, err := e.Store.Put(ctx, data, fileName, contentType, folder)
	if err != nil {
		return "", err
	}
	err = e.RecordSource.Update(ctx, category, record.ID, ref.URL)
	if err != nil {
		return "", err
	}
	return ref.URL, nil
}

func (e *Engine) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("Cannot build request for %s", sourceURL), err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("GET %s failed", sourceURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("GET %s returned status %d", sourceURL, resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, media.NewError(media.ErrDownloadFailed,
			fmt.Sprintf("Error reading body from %s", sourceURL), err)
	}
	return data, nil
}

// finishRecord checkpoints and publishes one record's outcome.
// Both are best-effort: a checkpoint or publish failure is logged
// and the run moves on.
func (e *Engine) finishRecord(category string, record *media.MigrationRecord, outcome, newURL string, attempts int, message string) {
	recordOutcome := &media.RecordOutcome{
		Attempts:     attempts,
		Category:     category,
		ErrorMessage: message,
		FinishedAt:   time.Now().UTC(),
		NewURL:       newURL,
		Outcome:      outcome,
		RecordID:     record.ID,
		RunID:        e.RunID,
		SourceURL:    record.SourceURL,
	}
	if e.Checkpointer != nil {
		if err := e.Checkpointer.OutcomeSave(recordOutcome); err != nil {
			e.Logger.Warningf("Could not checkpoint record %s: %v", record.ID, err)
		}
	}
	if e.Publisher != nil {
		if err := e.Publisher.PublishOutcome(recordOutcome); err != nil {
			e.Logger.Warningf("Could not publish outcome for record %s: %v", record.ID, err)
		}
	}
}

// verify re-counts how many fields across the record source still
// reference a legacy host. A non-zero residue is a warning, never a
// failure: some records may belong to categories outside this run.
func (e *Engine) verify(ctx context.Context, stats *media.MigrationStats) {
	if e.RecordSource == nil {
		return
	}
	count, err := e.RecordSource.CountLegacy(ctx, e.LegacyHosts)
	if err != nil {
		e.Logger.Warningf("Verification pass failed: %v", err)
		return
	}
	stats.ResidualLegacyCount = count
	if count > 0 {
		e.Logger.Warningf("Verification: %d fields still reference a legacy host", count)
	} else {
		e.Logger.Info("Verification: no residual legacy URLs")
	}
}

func fileNameFromURL(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("unparsable URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	fileName := path.Base(u.Path)
	if fileName == "" || fileName == "." || fileName == "/" {
		return "", fmt.Errorf("URL has no file name: %s", sourceURL)
	}
	return fileName, nil
}
