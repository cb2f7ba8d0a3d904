package network

import (
	"encoding/json"

	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/models/media"
)

// EventPublisher pushes migration outcome events to NSQ so the
// surrounding application (cache warmers, audit tooling) can react to
// completed migrations. Publishing is best-effort: the engine logs
// and continues when a publish fails.
type EventPublisher struct {
	logger   *logging.Logger
	producer *nsq.Producer
}

// NewEventPublisher connects a producer to the nsqd at address
// (TCP port, usually :4150).
func NewEventPublisher(address string, logger *logging.Logger) (*EventPublisher, error) {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	producer, err := nsq.NewProducer(address, config)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{
		logger:   logger,
		producer: producer,
	}, nil
}

// PublishOutcome sends one record's outcome to the results topic.
func (p *EventPublisher) PublishOutcome(outcome *media.RecordOutcome) error {
	jsonData, err := outcome.ToJson()
	if err != nil {
		return err
	}
	return p.producer.Publish(constants.TopicMigrationResults, []byte(jsonData))
}

// PublishSummary sends a whole run's stats to the summary topic.
func (p *EventPublisher) PublishSummary(stats *media.MigrationStats) error {
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return p.producer.Publish(constants.TopicMigrationSummary, jsonData)
}

// Stop flushes and shuts down the producer.
func (p *EventPublisher) Stop() {
	p.producer.Stop()
}
