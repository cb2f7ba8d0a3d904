package common

import (
	"fmt"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/network"
	"github.com/pawgram/media-services/storeurl"
	"github.com/pawgram/media-services/util/logger"
)

// Context bundles the config, logger, and network clients every app
// in this repo needs. Build one per process and pass it by reference.
type Context struct {
	Codec          *storeurl.Codec
	Config         *Config
	EventPublisher *network.EventPublisher
	Logger         *logging.Logger
	RecordSource   *network.RecordSourceClient
	RedisClient    *network.RedisClient
	StorageClient  *network.StorageClient
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Codec:          storeurl.NewCodec(config.BucketName, config.Region),
		Config:         config,
		EventPublisher: getEventPublisher(config, _logger),
		Logger:         _logger,
		RecordSource:   getRecordSourceClient(config, _logger),
		RedisClient:    getRedisClient(config),
		StorageClient:  getStorageClient(config, _logger),
	}
}

func getLogger(config *Config) *logging.Logger {
	logger, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return logger
}

func getStorageClient(config *Config, logger *logging.Logger) *network.StorageClient {
	useSSL := true
	if config.ConfigName == "dev" || config.ConfigName == "test" {
		useSSL = false // talking to localhost in dev and test
	}
	client, err := network.NewStorageClient(
		config.S3Credentials.Host,
		config.S3Credentials.KeyID,
		config.S3Credentials.SecretKey,
		config.BucketName,
		config.Region,
		useSSL,
		logger)
	if err != nil {
		msg := fmt.Sprintf("Could not initialize storage client: %v", err)
		panic(msg)
	}
	return client
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

// The event publisher is optional: apps that never migrate anything
// (like the HTTP API) run without NSQ.
func getEventPublisher(config *Config, logger *logging.Logger) *network.EventPublisher {
	if config.NsqURL == "" {
		return nil
	}
	publisher, err := network.NewEventPublisher(config.NsqURL, logger)
	if err != nil {
		msg := fmt.Sprintf("Could not initialize NSQ publisher: %v", err)
		panic(msg)
	}
	return publisher
}

func getRecordSourceClient(config *Config, logger *logging.Logger) *network.RecordSourceClient {
	if config.RecordSourceURL == "" {
		return nil
	}
	client, err := network.NewRecordSourceClient(
		config.RecordSourceURL,
		config.RecordSourceAPIUser,
		config.RecordSourceAPIKey,
		logger)
	if err != nil {
		msg := fmt.Sprintf("Could not initialize record source client: %v", err)
		panic(msg)
	}
	return client
}
