package media

import (
	"fmt"
	"sync"
	"time"
)

// CategoryStats accumulates per-category counters during a migration
// run. Counter fields are public so we can serialize them, but writes
// go through the Add* methods, which lock internally.
type CategoryStats struct {
	Category string `json:"category"`
	Failed   int    `json:"failed"`
	Migrated int    `json:"migrated"`
	Skipped  int    `json:"skipped"`
	Total    int    `json:"total"`

	mutex *sync.Mutex
}

func NewCategoryStats(category string) *CategoryStats {
	return &CategoryStats{
		Category: category,
		mutex:    &sync.Mutex{},
	}
}

func (s *CategoryStats) AddTotal(n int) {
	s.mutex.Lock()
	s.Total += n
	s.mutex.Unlock()
}

func (s *CategoryStats) AddMigrated() {
	s.mutex.Lock()
	s.Migrated++
	s.mutex.Unlock()
}

func (s *CategoryStats) AddFailed() {
	s.mutex.Lock()
	s.Failed++
	s.mutex.Unlock()
}

func (s *CategoryStats) AddSkipped() {
	s.mutex.Lock()
	s.Skipped++
	s.mutex.Unlock()
}

func (s *CategoryStats) String() string {
	return fmt.Sprintf("%-24s total: %4d  migrated: %4d  skipped: %4d  failed: %4d",
		s.Category, s.Total, s.Migrated, s.Skipped, s.Failed)
}

// MigrationStats is the aggregate result of one run: one CategoryStats
// per category plus a grand total. Read-only once the run completes.
type MigrationStats struct {
	Categories          []*CategoryStats `json:"categories"`
	FinishedAt          time.Time        `json:"finished_at"`
	ResidualLegacyCount int              `json:"residual_legacy_count"`
	RunID               string           `json:"run_id"`
	StartedAt           time.Time        `json:"started_at"`
}

func NewMigrationStats(runID string) *MigrationStats {
	return &MigrationStats{
		Categories: make([]*CategoryStats, 0),
		RunID:      runID,
		StartedAt:  time.Now().UTC(),
	}
}

func (stats *MigrationStats) AddCategory(categoryStats *CategoryStats) {
	stats.Categories = append(stats.Categories, categoryStats)
}

func (stats *MigrationStats) Finish() {
	stats.FinishedAt = time.Now().UTC()
}

// GrandTotal sums all category counters into a single CategoryStats
// labeled "TOTAL".
func (stats *MigrationStats) GrandTotal() *CategoryStats {
	total := NewCategoryStats("TOTAL")
	for _, categoryStats := range stats.Categories {
		total.Total += categoryStats.Total
		total.Migrated += categoryStats.Migrated
		total.Skipped += categoryStats.Skipped
		total.Failed += categoryStats.Failed
	}
	return total
}

// AnyFailed reports whether any record in any category exhausted its
// retries. The migration CLI exits non-zero when this is true.
func (stats *MigrationStats) AnyFailed() bool {
	for _, categoryStats := range stats.Categories {
		if categoryStats.Failed > 0 {
			return true
		}
	}
	return false
}
