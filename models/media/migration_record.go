package media

import (
	"encoding/json"
	"time"
)

// MigrationRecord is one legacy media reference discovered in the
// external record source at batch start. The engine consumes each
// record exactly once per run; the record source's own row is updated
// in place with the new URL.
type MigrationRecord struct {
	ID           string `json:"id"`
	SourceURL    string `json:"source_url"`
	TargetFolder string `json:"target_folder"`
}

// RecordOutcome is what we checkpoint to Redis and publish to NSQ for
// each record the engine touches. A re-run of the same migration can
// skip any record whose prior outcome was "migrated".
type RecordOutcome struct {
	Attempts     int       `json:"attempts"`
	Category     string    `json:"category"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
	NewURL       string    `json:"new_url,omitempty"`
	Outcome      string    `json:"outcome"`
	RecordID     string    `json:"record_id"`
	RunID        string    `json:"run_id"`
	SourceURL    string    `json:"source_url"`
}

func RecordOutcomeFromJson(jsonData string) (*RecordOutcome, error) {
	outcome := &RecordOutcome{}
	err := json.Unmarshal([]byte(jsonData), outcome)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (outcome *RecordOutcome) ToJson() (string, error) {
	bytes, err := json.Marshal(outcome)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
