package common_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pawgram/media-services/models/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEnvFile = `S3_KEY=minioadmin
S3_SECRET=minioadmin
S3_BUCKET=pawgram-media-test
S3_HOST=localhost:9899
LOG_LEVEL=DEBUG
LEGACY_HOSTS=legacy.example.com, cdn.oldhost.io
RECORD_SOURCE_URL=http://localhost:9584
REDIS_URL=localhost:6379
NSQ_URL=http://localhost:4151
`

func writeTestConfig(t *testing.T, contents string) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".env.test"), []byte(contents), 0644)
	require.Nil(t, err)
	t.Setenv("MEDIA_CONFIG_DIR", dir)
	t.Setenv("MEDIA_SERVICES_CONFIG", "test")
}

func TestNewConfig(t *testing.T) {
	writeTestConfig(t, testEnvFile+"LOG_DIR="+filepath.Join(t.TempDir(), "logs")+"\n")
	config := common.NewConfig()
	require.NotNil(t, config)
	assert.Equal(t, "test", config.ConfigName)
	assert.Equal(t, "pawgram-media-test", config.BucketName)
	assert.Equal(t, "minioadmin", config.S3Credentials.KeyID)
	assert.Equal(t, "localhost:9899", config.S3Credentials.Host)
	assert.Equal(t, "us-east-1", config.Region)
	assert.Equal(t, []string{"legacy.example.com", "cdn.oldhost.io"}, config.LegacyHosts)

	// Defaults
	assert.Equal(t, 10, config.MigrationBatchSize)
	assert.Equal(t, 3, config.MigrationMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.MigrationBatchPause)
	assert.Equal(t, time.Hour, config.PresignTTL)
	assert.Equal(t, 50*time.Minute, config.CacheTTL)
	assert.Equal(t, int64(128*1024*1024), config.MaxUploadSize)

	// Log dir should exist after NewConfig
	stat, err := os.Stat(config.LogDir)
	require.Nil(t, err)
	assert.True(t, stat.IsDir())
}

func TestNewConfigMissingRequiredSetting(t *testing.T) {
	noBucket := `S3_KEY=minioadmin
S3_SECRET=minioadmin
S3_HOST=localhost:9899
LOG_DIR=/tmp/pawgram-test-logs
`
	writeTestConfig(t, noBucket)
	assert.Panics(t, func() { common.NewConfig() })
}

func TestNewConfigRefusesAWSHostInTest(t *testing.T) {
	awsHost := `S3_KEY=real-key
S3_SECRET=real-secret
S3_BUCKET=pawgram-media
S3_HOST=s3.us-east-1.amazonaws.com
LOG_DIR=/tmp/pawgram-test-logs
`
	writeTestConfig(t, awsHost)
	assert.Panics(t, func() { common.NewConfig() })
}
