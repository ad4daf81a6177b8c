// Package config provides YAML-based configuration loading for meshgraph.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// NodeID names the local node in references and envelopes
	NodeID string `mapstructure:"node_id"`

	Log       LogConfig       `mapstructure:"log"`
	Codec     CodecConfig     `mapstructure:"codec"`
	Store     StoreConfig     `mapstructure:"store"`
	Directory DirectoryConfig `mapstructure:"directory"`

	// Peers seeds the node directory.
	Peers []PeerConfig `mapstructure:"peers"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CodecConfig selects the wire format and the default policy.
type CodecConfig struct {
	// Format: json, cbor, msgpack or proto
	Format   string `mapstructure:"format"`
	Compress bool   `mapstructure:"compress"`
	// Mode: subscribe or acquire
	Mode     string `mapstructure:"mode"`
	MaxDepth int    `mapstructure:"max_depth"`
	// FragmentBytes splits larger payloads on streams (0 = off)
	FragmentBytes int `mapstructure:"fragment_bytes"`
}

type StoreConfig struct {
	Shards      int    `mapstructure:"shards"`
	MaxBytes    uint64 `mapstructure:"max_bytes"`
	ObjectTTLMS int64  `mapstructure:"object_ttl_ms"`
}

type DirectoryConfig struct {
	Shards    int   `mapstructure:"shards"`
	NodeTTLMS int64 `mapstructure:"node_ttl_ms"`
}

type PeerConfig struct {
	ID     string            `mapstructure:"id"`
	Addr   string            `mapstructure:"addr"`
	Labels map[string]string `mapstructure:"labels"`
}

func (s StoreConfig) ObjectTTL() time.Duration { return time.Duration(s.ObjectTTLMS) * time.Millisecond }

func (d DirectoryConfig) NodeTTL() time.Duration { return time.Duration(d.NodeTTLMS) * time.Millisecond }

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		NodeID: "node-1",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/meshgraph.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Codec: CodecConfig{
			Format:   "json",
			Mode:     "subscribe",
			MaxDepth: 512,
		},
		Store:     StoreConfig{Shards: 64},
		Directory: DirectoryConfig{Shards: 16, NodeTTLMS: int64(5 * time.Minute / time.Millisecond)},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix MESHGRAPH and `.`/`-` are replaced with `_`.
// Example: MESHGRAPH_CODEC_FORMAT=cbor
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MESHGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("codec.format", cfg.Codec.Format)
	v.SetDefault("codec.compress", cfg.Codec.Compress)
	v.SetDefault("codec.mode", cfg.Codec.Mode)
	v.SetDefault("codec.max_depth", cfg.Codec.MaxDepth)
	v.SetDefault("codec.fragment_bytes", cfg.Codec.FragmentBytes)
	v.SetDefault("store.shards", cfg.Store.Shards)
	v.SetDefault("store.max_bytes", cfg.Store.MaxBytes)
	v.SetDefault("store.object_ttl_ms", cfg.Store.ObjectTTLMS)
	v.SetDefault("directory.shards", cfg.Directory.Shards)
	v.SetDefault("directory.node_ttl_ms", cfg.Directory.NodeTTLMS)

	if path == "" {
		if envPath := os.Getenv("MESHGRAPH_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `meshgraph`
		v.SetConfigName("meshgraph")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".meshgraph"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = "node-1"
	}

	c.Codec.Format = strings.ToLower(strings.TrimSpace(c.Codec.Format))
	switch c.Codec.Format {
	case "json", "cbor", "msgpack", "proto", "protobuf":
	default:
		return fmt.Errorf("invalid codec.format: %q", c.Codec.Format)
	}
	c.Codec.Mode = strings.ToLower(strings.TrimSpace(c.Codec.Mode))
	switch c.Codec.Mode {
	case "", "subscribe", "acquire":
	default:
		return fmt.Errorf("invalid codec.mode: %q", c.Codec.Mode)
	}
	if c.Codec.MaxDepth < 0 || c.Codec.FragmentBytes < 0 {
		return errors.New("codec.max_depth and codec.fragment_bytes must not be negative")
	}
	for i, p := range c.Peers {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("peers[%d]: missing id", i)
		}
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
