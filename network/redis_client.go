package network

import (
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v7"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/models/media"
)

// RedisClient is the migration checkpoint store. Each run writes one
// hash per category under its run ID; a re-run of an interrupted
// migration reads prior outcomes back and skips records that already
// migrated. Keys expire with the run's own lifetime management, not
// TTLs: the operator deletes finished runs with RunDelete.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func runKey(runID, category string) string {
	return fmt.Sprintf("migration:%s:%s", runID, category)
}

// OutcomeSave checkpoints the outcome for one record.
func (c *RedisClient) OutcomeSave(outcome *media.RecordOutcome) error {
	jsonData, err := outcome.ToJson()
	if err != nil {
		return err
	}
	key := runKey(outcome.RunID, outcome.Category)
	field := fmt.Sprintf("record:%s", outcome.RecordID)
	_, err = c.client.HSet(key, field, jsonData).Result()
	return err
}

// OutcomeGet returns the checkpointed outcome for one record, or an
// error if none was saved.
func (c *RedisClient) OutcomeGet(runID, category, recordID string) (*media.RecordOutcome, error) {
	key := runKey(runID, category)
	field := fmt.Sprintf("record:%s", recordID)
	data, err := c.client.HGet(key, field).Result()
	if err != nil {
		return nil, fmt.Errorf("OutcomeGet (%s, %s, %s): %s",
			runID, category, recordID, err.Error())
	}
	return media.RecordOutcomeFromJson(data)
}

// AlreadyMigrated returns true if a prior pass of this run already
// migrated the record. Missing checkpoints and Redis errors both
// report false: worst case we re-check a record the slow way.
func (c *RedisClient) AlreadyMigrated(runID, category, recordID string) bool {
	outcome, err := c.OutcomeGet(runID, category, recordID)
	if err != nil {
		return false
	}
	return outcome.Outcome == constants.OutcomeMigrated
}

// StatsSave stores the final per-category stats for a run.
func (c *RedisClient) StatsSave(runID string, stats *media.CategoryStats) error {
	key := fmt.Sprintf("migration:%s:stats", runID)
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = c.client.HSet(key, stats.Category, string(jsonData)).Result()
	return err
}

// RunDelete removes all checkpoint data for a run.
func (c *RedisClient) RunDelete(runID string, categories []string) error {
	keys := make([]string, 0, len(categories)+1)
	for _, category := range categories {
		keys = append(keys, runKey(runID, category))
	}
	keys = append(keys, fmt.Sprintf("migration:%s:stats", runID))
	_, err := c.client.Del(keys...).Result()
	return err
}
