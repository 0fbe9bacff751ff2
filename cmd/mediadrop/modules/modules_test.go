package modules

import (
	"log/slog"
	"testing"

	"go.uber.org/fx"

	"github.com/memohai/mediadrop/internal/config"
)

func TestGraphResolves(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(ConfigPath("")),
		InfraModule,
		PipelineModule,
		TelegramModule,
		ServerModule,
		fx.NopLogger,
	)
	if err != nil {
		t.Fatalf("validate app: %v", err)
	}
}

func TestExtractorConfigDumpDir(t *testing.T) {
	cfg := config.Config{Extractor: config.ExtractorConfig{Binary: "ytdl", MaxConcurrent: 2}}
	if got := extractorConfig(cfg, "/var/cache"); got.DumpDir != "" || got.Binary != "ytdl" || got.MaxConcurrent != 2 {
		t.Fatalf("config = %+v", got)
	}
	cfg.Extractor.DumpMetadata = true
	if got := extractorConfig(cfg, "/var/cache"); got.DumpDir != "/var/cache" {
		t.Fatalf("dump dir = %q", got.DumpDir)
	}
}

func TestFetchHonoursCacheDirOverride(t *testing.T) {
	t.Setenv("CACHE_DIR", "/srv/mediadrop")
	cfg := config.Config{
		Extractor: config.ExtractorConfig{DumpMetadata: true},
		Cache:     config.CacheConfig{Dir: "/var/cache"},
	}
	if got := fetchExtractorConfig(cfg).DumpDir; got != "/srv/mediadrop" {
		t.Fatalf("dump dir = %q", got)
	}
}

func TestProvideRing(t *testing.T) {
	ring, err := provideRing(config.Config{Log: config.LogConfig{RingLevel: "error", RingSize: 3}})
	if err != nil {
		t.Fatalf("provideRing: %v", err)
	}
	if ring.Level() != slog.LevelError {
		t.Fatalf("level = %v", ring.Level())
	}
	if _, err := provideRing(config.Config{Log: config.LogConfig{RingLevel: "loud"}}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
