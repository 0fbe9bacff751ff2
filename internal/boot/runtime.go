// Package boot provides runtime configuration for the server binary.
package boot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/memohai/mediadrop/internal/config"
	"github.com/memohai/mediadrop/internal/idcache"
)

// Telegram update delivery modes.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// RuntimeConfig holds parsed runtime settings (bot credentials, addresses, cache location).
// Values may be overridden by environment variables (e.g. BOT_TOKEN, HTTP_ADDR).
type RuntimeConfig struct {
	BotToken   string
	OwnerID    int64
	Mode       string
	PublicURL  string
	ServerAddr string
	CacheDir   string
}

// CachePath is the destination id cache file.
func (rc *RuntimeConfig) CachePath() string {
	return filepath.Join(rc.CacheDir, idcache.FileName)
}

// WebhookURL is the address Telegram posts updates to.
func (rc *RuntimeConfig) WebhookURL() string {
	return strings.TrimRight(rc.PublicURL, "/") + "/bot"
}

// ResolveCacheDir returns the cache directory from cfg, overridden by
// CACHE_DIR. Commands that run without bot credentials use it directly.
func ResolveCacheDir(cfg config.Config) string {
	dir := cfg.Cache.Dir
	if value := os.Getenv("CACHE_DIR"); value != "" {
		dir = value
	}
	if dir == "" {
		dir = config.DefaultCacheDir
	}
	return dir
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	ret := &RuntimeConfig{
		BotToken:   cfg.Telegram.Token,
		OwnerID:    cfg.Telegram.OwnerID,
		Mode:       strings.ToLower(strings.TrimSpace(cfg.Telegram.Mode)),
		PublicURL:  cfg.Server.PublicURL,
		ServerAddr: cfg.Server.Addr,
		CacheDir:   ResolveCacheDir(cfg),
	}

	if value := os.Getenv("BOT_TOKEN"); value != "" {
		ret.BotToken = value
	}
	if value := os.Getenv("OWNER_TELEGRAM_ID"); value != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OWNER_TELEGRAM_ID: %w", err)
		}
		ret.OwnerID = id
	}
	if value := os.Getenv("PUBLIC_URL"); value != "" {
		ret.PublicURL = value
	}
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}

	if strings.TrimSpace(ret.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if ret.OwnerID == 0 {
		return nil, errors.New("telegram owner id is required")
	}
	switch ret.Mode {
	case "", ModeWebhook:
		ret.Mode = ModeWebhook
		if strings.TrimSpace(ret.PublicURL) == "" {
			return nil, errors.New("public url is required in webhook mode")
		}
	case ModePolling:
	default:
		return nil, fmt.Errorf("unknown telegram mode %q", ret.Mode)
	}
	return ret, nil
}
