package media_test

import (
	"sync"
	"testing"

	"github.com/pawgram/media-services/models/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryStats(t *testing.T) {
	stats := media.NewCategoryStats("user avatars")
	stats.AddTotal(5)
	stats.AddMigrated()
	stats.AddMigrated()
	stats.AddSkipped()
	stats.AddFailed()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Migrated)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, stats.String(), "user avatars")
}

func TestCategoryStatsConcurrentWrites(t *testing.T) {
	stats := media.NewCategoryStats("post media")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.AddMigrated()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, stats.Migrated)
}

func TestMigrationStats(t *testing.T) {
	stats := media.NewMigrationStats("run-1")
	require.False(t, stats.StartedAt.IsZero())

	avatars := media.NewCategoryStats("user avatars")
	avatars.AddTotal(3)
	avatars.AddMigrated()
	avatars.AddSkipped()
	avatars.AddFailed()

	posts := media.NewCategoryStats("post media")
	posts.AddTotal(2)
	posts.AddMigrated()
	posts.AddMigrated()

	stats.AddCategory(avatars)
	stats.AddCategory(posts)
	stats.Finish()

	total := stats.GrandTotal()
	assert.Equal(t, 5, total.Total)
	assert.Equal(t, 3, total.Migrated)
	assert.Equal(t, 1, total.Skipped)
	assert.Equal(t, 1, total.Failed)
	assert.True(t, stats.AnyFailed())
	assert.False(t, stats.FinishedAt.IsZero())
}

func TestMigrationStatsNoFailures(t *testing.T) {
	stats := media.NewMigrationStats("run-2")
	clean := media.NewCategoryStats("pet photos")
	clean.AddTotal(1)
	clean.AddMigrated()
	stats.AddCategory(clean)
	assert.False(t, stats.AnyFailed())
}

func TestRecordOutcomeJson(t *testing.T) {
	outcome := &media.RecordOutcome{
		Attempts:  2,
		Category:  "user avatars",
		Outcome:   "migrated",
		RecordID:  "42",
		RunID:     "run-1",
		SourceURL: "https://legacy.example/f1.png",
		NewURL:    "https://bucket.s3.us-east-1.amazonaws.com/users/1700000000000-f1.png",
	}
	jsonData, err := outcome.ToJson()
	require.Nil(t, err)

	restored, err := media.RecordOutcomeFromJson(jsonData)
	require.Nil(t, err)
	assert.Equal(t, outcome.RecordID, restored.RecordID)
	assert.Equal(t, outcome.Outcome, restored.Outcome)
	assert.Equal(t, outcome.NewURL, restored.NewURL)
}
