package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/memohai/mediadrop/internal/boot"
	"github.com/memohai/mediadrop/internal/config"
	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/extractor"
	"github.com/memohai/mediadrop/internal/idcache"
)

var PipelineModule = fx.Module(
	"pipeline",
	fx.Provide(
		provideCache,
		provideExtractor,
		providePipeline,
	),
)

// provideCache loads the id cache and ties its checkpoint schedule and final
// flush to the lifecycle. It is constructed before the bot and the server, so
// it stops after both.
func provideCache(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (*idcache.Cache, error) {
	cache, err := idcache.Open(rc.CachePath())
	if err != nil {
		return nil, err
	}
	checkpointer, err := idcache.NewCheckpointer(log, cache, cfg.Cache.Checkpoint)
	if err != nil {
		return nil, err
	}
	tracks, videos := cache.Len()
	log.Info("id cache loaded",
		slog.String("path", cache.Path()),
		slog.Int("tracks", tracks),
		slog.Int("videos", videos),
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			checkpointer.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var result error
			checkpointer.Stop()
			if err := cache.Flush(); err != nil {
				result = multierror.Append(result, fmt.Errorf("flush id cache: %w", err))
			}
			return result
		},
	})
	return cache, nil
}

func provideExtractor(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *extractor.Extractor {
	return extractor.New(log, extractor.ExecRunner{}, extractorConfig(cfg, rc.CacheDir))
}

func providePipeline(log *slog.Logger, ex *extractor.Extractor, cache *idcache.Cache) *delivery.Pipeline {
	return delivery.NewPipeline(log, ex, cache)
}

// extractorConfig maps the [extractor] section; metadata dumps land next to
// the id cache.
func extractorConfig(cfg config.Config, cacheDir string) extractor.Config {
	ec := extractor.Config{
		Binary:        cfg.Extractor.Binary,
		MaxFileSize:   cfg.Extractor.MaxFileSize,
		BufferLimit:   cfg.Extractor.BufferLimit,
		MaxConcurrent: cfg.Extractor.MaxConcurrent,
	}
	if cfg.Extractor.DumpMetadata {
		ec.DumpDir = cacheDir
	}
	return ec
}

// NewFetchPipeline builds a pipeline without an id cache for one-off
// downloads outside the server.
func NewFetchPipeline(log *slog.Logger, cfg config.Config) *delivery.Pipeline {
	ex := extractor.New(log, extractor.ExecRunner{}, fetchExtractorConfig(cfg))
	return delivery.NewPipeline(log, ex, nil)
}

func fetchExtractorConfig(cfg config.Config) extractor.Config {
	return extractorConfig(cfg, boot.ResolveCacheDir(cfg))
}
