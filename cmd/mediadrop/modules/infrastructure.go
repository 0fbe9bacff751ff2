package modules

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/memohai/mediadrop/internal/boot"
	"github.com/memohai/mediadrop/internal/config"
	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/stats"
)

// ConfigPath is the TOML file given on the command line. Empty falls back
// to CONFIG_PATH and then to config.DefaultConfigPath.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideRing,
		provideLogger,
		boot.ProvideRuntimeConfig,
		stats.New,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(path ConfigPath) (config.Config, error) {
	cfgPath := string(path)
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideRing(cfg config.Config) (*logger.Ring, error) {
	level, err := logger.ParseLevel(cfg.Log.RingLevel)
	if err != nil {
		return nil, fmt.Errorf("log ring level: %w", err)
	}
	return logger.NewRing(cfg.Log.RingSize, level), nil
}

func provideLogger(cfg config.Config, ring *logger.Ring) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format, ring)
	return logger.L
}
