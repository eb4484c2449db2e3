// Package config loads seqfile settings from a YAML file, with environment
// overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yhsiang/seqfile/pkg/seqfile"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "seqfile.yaml"

const envPrefix = "SEQFILE_"

type QueueConfig struct {
	// Dir is the queue directory
	Dir string `yaml:"dir"`

	// Pattern renders file numbers into names (printf style)
	Pattern string `yaml:"pattern"`

	// Extension of queue files, without the dot
	Extension string `yaml:"extension"`

	// MaxPathLen is the longest path the queue will compose
	MaxPathLen int `yaml:"max_path_len"`
}

type ServerConfig struct {
	// Addr is the listen address of the receiving side
	Addr string `yaml:"addr"`

	// SpoolDir is the queue received files are stored in
	SpoolDir string `yaml:"spool_dir"`

	// MaxUploadSize bounds multipart uploads, in bytes
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

type ClientConfig struct {
	// URL of the receiving server's websocket endpoint
	URL string `yaml:"url"`

	// AckTimeout is how long to wait for the server to confirm a file
	AckTimeout time.Duration `yaml:"ack_timeout"`

	// PollInterval rechecks the queue when no enqueue was signalled
	PollInterval time.Duration `yaml:"poll_interval"`

	// AllExtensions removes every file sharing a shipped file's number
	AllExtensions bool `yaml:"all_extensions"`
}

type InboxConfig struct {
	// Dir is watched for files to ingest into the queue
	Dir string `yaml:"dir"`

	// PollInterval for rescanning the inbox
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	LogLevel string       `yaml:"log_level"`
	Queue    QueueConfig  `yaml:"queue"`
	Server   ServerConfig `yaml:"server"`
	Client   ClientConfig `yaml:"client"`
	Inbox    InboxConfig  `yaml:"inbox"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Queue: QueueConfig{
			Dir:        "queue",
			Pattern:    seqfile.DefaultPattern,
			MaxPathLen: seqfile.DefaultMaxPathLen,
		},
		Server: ServerConfig{
			Addr:          "localhost:3000",
			SpoolDir:      "spool",
			MaxUploadSize: 32 << 20,
		},
		Client: ClientConfig{
			URL:          "ws://localhost:3000/ws",
			AckTimeout:   30 * time.Second,
			PollInterval: 5 * time.Second,
		},
		Inbox: InboxConfig{
			Dir:          "inbox",
			PollInterval: time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults; a
// malformed one is an error. A .env file in the working directory and
// SEQFILE_* variables are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LOG_LEVEL":    &c.LogLevel,
		"DIR":          &c.Queue.Dir,
		"PATTERN":      &c.Queue.Pattern,
		"EXTENSION":    &c.Queue.Extension,
		"SERVER_ADDR":  &c.Server.Addr,
		"SERVER_SPOOL": &c.Server.SpoolDir,
		"CLIENT_URL":   &c.Client.URL,
		"INBOX_DIR":    &c.Inbox.Dir,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_PATH_LEN"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sMAX_PATH_LEN %q", envPrefix, v)
		}
		c.Queue.MaxPathLen = n
	}

	if v, ok := os.LookupEnv(envPrefix + "CLIENT_ACK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sCLIENT_ACK_TIMEOUT %q", envPrefix, v)
		}
		c.Client.AckTimeout = d
	}
	return nil
}

// QueueOptions converts a queue section into seqfile options.
func (q QueueConfig) QueueOptions() *seqfile.Options {
	opts := seqfile.DefaultOptions(q.Dir)
	if q.Pattern != "" {
		opts.Pattern = q.Pattern
	}
	opts.Extension = q.Extension
	if q.MaxPathLen > 0 {
		opts.MaxPathLen = q.MaxPathLen
	}
	return opts
}
