// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8443"
	DefaultExtractorBin  = "yt-dlp"
	DefaultMaxConcurrent = 4
	DefaultCacheDir      = "."
	DefaultWebDir        = "dist"
	DefaultRateLimit     = 25
	DefaultRateBurst     = 5
	DefaultRingSize      = 100
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Extractor ExtractorConfig `toml:"extractor"`
	Cache     CacheConfig     `toml:"cache"`
	Web       WebConfig       `toml:"web"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text),
// plus the level and size of the buffer delivered to the bot owner.
type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	RingLevel string `toml:"ring_level"`
	RingSize  int    `toml:"ring_size"`
}

// ServerConfig holds the HTTP server listen address and the public base URL
// the webhook is registered under.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	PublicURL string `toml:"public_url"`
}

// TelegramConfig holds bot credentials and the update delivery mode.
type TelegramConfig struct {
	Token   string `toml:"token"`
	OwnerID int64  `toml:"owner_id"`
	// Mode is "webhook" (updates POSTed to /bot) or "polling".
	Mode string `toml:"mode"`
	// RateLimit caps outbound API requests per second.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
	Debug     bool    `toml:"debug"`
}

// ExtractorConfig tunes the external extraction tool.
type ExtractorConfig struct {
	Binary        string `toml:"binary"`
	MaxFileSize   int64  `toml:"max_file_size"`
	BufferLimit   int64  `toml:"buffer_limit"`
	MaxConcurrent int    `toml:"max_concurrent"`
	DumpMetadata  bool   `toml:"dump_metadata"`
}

// CacheConfig holds where the destination id cache lives and how often it
// is checkpointed (cron spec, empty disables).
type CacheConfig struct {
	Dir        string `toml:"dir"`
	Checkpoint string `toml:"checkpoint"`
}

// WebConfig holds the static site served for unmatched routes.
type WebConfig struct {
	Dir string `toml:"dir"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			RingLevel: "warn",
			RingSize:  DefaultRingSize,
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			Mode:      "webhook",
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Extractor: ExtractorConfig{
			Binary:        DefaultExtractorBin,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDir,
		},
		Web: WebConfig{
			Dir: DefaultWebDir,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
