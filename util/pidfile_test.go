package util_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pawgram/media-services/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media_migration.pid")
	require.Nil(t, util.WritePidFile(path))
	assert.Equal(t, os.Getpid(), util.ReadPidFile(path))

	// Our own pid doesn't count as "other process"
	assert.False(t, util.IsRunningInOtherProcess(path))

	age, err := util.AgeOfPidFile(path)
	require.Nil(t, err)
	assert.True(t, age >= 0)

	require.Nil(t, util.DeletePidFile(path))
	assert.False(t, util.FileExists(path))
}

func TestReadPidFileGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pid")
	require.Nil(t, os.WriteFile(path, []byte("not-a-pid"), 0664))
	assert.Equal(t, 0, util.ReadPidFile(path))
	assert.False(t, util.IsRunningInOtherProcess(path))
}

func TestIsRunningInOtherProcessStalePid(t *testing.T) {
	// Pid 0 in the file means nothing useful was recorded.
	path := filepath.Join(t.TempDir(), "stale.pid")
	require.Nil(t, os.WriteFile(path, []byte(strconv.Itoa(0)), 0664))
	assert.False(t, util.IsRunningInOtherProcess(path))
}

func TestProcessIsRunning(t *testing.T) {
	assert.True(t, util.ProcessIsRunning(os.Getpid()))
}
