package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Persistence backends.
const (
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendMongo  = "mongo"
)

// Config represents the global ~/.chatdesk/config.toml.
type Config struct {
	DefaultProfile string      `toml:"default_profile"`
	Persistence    Persistence `toml:"persistence"`
	Calls          Calls       `toml:"calls"`
	API            API         `toml:"api"`
	Attachments    Attachments `toml:"attachments"`
}

// Persistence selects where the chat state blobs are kept.
type Persistence struct {
	Backend       string `toml:"backend"`
	NATSURL       string `toml:"nats_url"`
	NATSBucket    string `toml:"nats_bucket"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Calls holds the call coordinator timings.
type Calls struct {
	DialDelay    Duration `toml:"dial_delay"`
	CleanupDelay Duration `toml:"cleanup_delay"`
	TickInterval Duration `toml:"tick_interval"`
}

// API configures the daemon's gRPC surface.
type API struct {
	TCPListen         string `toml:"tcp_listen"`
	AuthSecret        string `toml:"auth_secret"`
	SendRatePerMinute int    `toml:"send_rate_per_minute"`
}

// Attachments configures attachment ingestion. VoiceSource is a file kept
// current by an external recording tool; empty disables voice notes.
type Attachments struct {
	MaxBytes    int64  `toml:"max_bytes"`
	VoiceSource string `toml:"voice_source"`
}

// Duration is a time.Duration written as a string such as "1.2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Persistence: Persistence{
			Backend:       BackendSQLite,
			NATSURL:       "nats://127.0.0.1:4222",
			NATSBucket:    "chatdesk",
			MongoURI:      "mongodb://127.0.0.1:27017",
			MongoDatabase: "chatdesk",
		},
		Calls: Calls{
			DialDelay:    Duration{1200 * time.Millisecond},
			CleanupDelay: Duration{400 * time.Millisecond},
			TickInterval: Duration{time.Second},
		},
		API: API{
			SendRatePerMinute: 120,
		},
		Attachments: Attachments{
			MaxBytes: 25 << 20,
		},
	}
}

// Load reads config from the given path on top of Default. Returns nil and
// error if the file is missing or invalid.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks values the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Persistence.Backend {
	case BackendSQLite, BackendNATS, BackendMongo:
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	for name, d := range map[string]Duration{
		"dial_delay":    c.Calls.DialDelay,
		"cleanup_delay": c.Calls.CleanupDelay,
		"tick_interval": c.Calls.TickInterval,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("calls.%s must be positive", name)
		}
	}
	if c.API.SendRatePerMinute < 0 {
		return fmt.Errorf("api.send_rate_per_minute must not be negative")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
