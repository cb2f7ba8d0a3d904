package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/pawgram/media-services/constants"
	"github.com/spf13/viper"
)

type S3Credentials struct {
	Host      string
	KeyID     string
	SecretKey string
}

type Config struct {
	BucketName           string
	CacheTTL             time.Duration
	ConfigName           string
	DownloadTimeout      time.Duration
	HTTPPort             int
	LegacyHosts          []string
	LogDir               string
	LogLevel             logging.Level
	MaxUploadSize        int64
	MigrationBatchPause  time.Duration
	MigrationBatchSize   int
	MigrationMaxAttempts int
	MigrationRetryBase   time.Duration
	NsqURL               string
	PresignTTL           time.Duration
	RecordSourceAPIKey   string
	RecordSourceAPIUser  string
	RecordSourceURL      string
	RedisDefaultDB       int
	RedisPassword        string
	RedisURL             string
	Region               string
	RunDir               string
	S3Credentials        S3Credentials
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// Returns a new config based on ENV var MEDIA_SERVICES_CONFIG
func NewConfig() *Config {
	config := loadConfig()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	setDefaults(v)
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	region := v.GetString("S3_REGION")
	s3Host := v.GetString("S3_HOST")
	if s3Host == "" {
		s3Host = fmt.Sprintf("s3.%s.amazonaws.com", region)
	}
	config := &Config{
		BucketName:           getRequiredSetting(v, "S3_BUCKET"),
		CacheTTL:             v.GetDuration("CACHE_TTL"),
		ConfigName:           envName,
		DownloadTimeout:      v.GetDuration("DOWNLOAD_TIMEOUT"),
		HTTPPort:             v.GetInt("HTTP_PORT"),
		LegacyHosts:          splitHosts(v.GetString("LEGACY_HOSTS")),
		LogDir:               getRequiredSetting(v, "LOG_DIR"),
		LogLevel:             logLevels[v.GetString("LOG_LEVEL")],
		MaxUploadSize:        v.GetInt64("MAX_UPLOAD_SIZE"),
		MigrationBatchPause:  v.GetDuration("MIGRATION_BATCH_PAUSE"),
		MigrationBatchSize:   v.GetInt("MIGRATION_BATCH_SIZE"),
		MigrationMaxAttempts: v.GetInt("MIGRATION_MAX_ATTEMPTS"),
		MigrationRetryBase:   v.GetDuration("MIGRATION_RETRY_BASE"),
		NsqURL:               v.GetString("NSQ_URL"),
		PresignTTL:           v.GetDuration("PRESIGN_TTL"),
		RecordSourceAPIKey:   v.GetString("RECORD_SOURCE_API_KEY"),
		RecordSourceAPIUser:  v.GetString("RECORD_SOURCE_API_USER"),
		RecordSourceURL:      v.GetString("RECORD_SOURCE_URL"),
		RedisDefaultDB:       v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisURL:             v.GetString("REDIS_URL"),
		Region:               region,
		RunDir:               v.GetString("RUN_DIR"),
		S3Credentials: S3Credentials{
			Host:      s3Host,
			KeyID:     getRequiredSetting(v, "S3_KEY"),
			SecretKey: getRequiredSetting(v, "S3_SECRET"),
		},
	}
	return config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CACHE_TTL", "50m")
	v.SetDefault("DOWNLOAD_TIMEOUT", "60s")
	v.SetDefault("HTTP_PORT", 8512)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("MAX_UPLOAD_SIZE", 128*1024*1024)
	v.SetDefault("MIGRATION_BATCH_PAUSE", "500ms")
	v.SetDefault("MIGRATION_BATCH_SIZE", 10)
	v.SetDefault("MIGRATION_MAX_ATTEMPTS", 3)
	v.SetDefault("MIGRATION_RETRY_BASE", "1s")
	v.SetDefault("PRESIGN_TTL", "1h")
	v.SetDefault("REDIS_DEFAULT_DB", 0)
	v.SetDefault("S3_REGION", constants.DefaultRegion)
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("MEDIA_CONFIG_DIR")
	envName := getRequiredEnvVar("MEDIA_SERVICES_CONFIG")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Absence of a required setting is a hard startup error,
// never a silent fallback.
func getRequiredSetting(v *viper.Viper, key string) string {
	value := v.GetString(key)
	if value == "" {
		panic(fmt.Sprintf("Required setting %s is missing from config file", key))
	}
	return value
}

func splitHosts(hosts string) []string {
	parts := strings.Split(hosts, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		host := strings.TrimSpace(part)
		if host != "" {
			cleaned = append(cleaned, host)
		}
	}
	return cleaned
}

func (c *Config) sanityCheck() {
	// Dev and test configs must not point at real AWS endpoints.
	// This keeps a local run from touching production media.
	if c.ConfigName == "dev" || c.ConfigName == "test" {
		if strings.HasSuffix(c.S3Credentials.Host, "amazonaws.com") {
			panic(fmt.Sprintf("Config %s cannot point to S3 host %s",
				c.ConfigName, c.S3Credentials.Host))
		}
	}
}

func (c *Config) makeDirs() {
	dirs := []string{c.LogDir}
	if c.RunDir != "" {
		dirs = append(dirs, c.RunDir)
	}
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
}
