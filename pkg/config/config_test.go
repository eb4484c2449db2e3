package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqfile.yaml")
	data := `
log_level: debug
queue:
  dir: /usr/events
  extension: dat
server:
  addr: ":9000"
client:
  ack_timeout: 5s
  all_extensions: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/usr/events", cfg.Queue.Dir)
	assert.Equal(t, "dat", cfg.Queue.Extension)
	assert.Equal(t, "%08d", cfg.Queue.Pattern)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "spool", cfg.Server.SpoolDir)
	assert.Equal(t, 5*time.Second, cfg.Client.AckTimeout)
	assert.True(t, cfg.Client.AllExtensions)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqfile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEQFILE_DIR", "/tmp/from-env")
	t.Setenv("SEQFILE_MAX_PATH_LEN", "128")
	t.Setenv("SEQFILE_CLIENT_ACK_TIMEOUT", "1m")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.Queue.Dir)
	assert.Equal(t, 128, cfg.Queue.MaxPathLen)
	assert.Equal(t, time.Minute, cfg.Client.AckTimeout)

	t.Setenv("SEQFILE_MAX_PATH_LEN", "lots")
	_, err = Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestQueueOptions(t *testing.T) {
	opts := QueueConfig{Dir: "/q", Extension: "dat"}.QueueOptions()
	assert.Equal(t, "/q", opts.Dir)
	assert.Equal(t, "%08d", opts.Pattern)
	assert.Equal(t, "dat", opts.Extension)
	assert.Equal(t, 255, opts.MaxPathLen)
}
