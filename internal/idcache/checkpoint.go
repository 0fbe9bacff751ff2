package idcache

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// Checkpointer flushes a cache on a cron schedule in addition to the
// shutdown flush.
type Checkpointer struct {
	cache  *Cache
	cron   *cron.Cron
	logger *slog.Logger
}

// NewCheckpointer parses spec (standard cron syntax, optional seconds field,
// or descriptors such as "@every 15m"). An empty spec returns nil.
func NewCheckpointer(log *slog.Logger, cache *Cache, spec string) (*Checkpointer, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	cp := &Checkpointer{
		cache:  cache,
		cron:   c,
		logger: log.With(slog.String("service", "idcache")),
	}
	if _, err := c.AddFunc(spec, cp.run); err != nil {
		return nil, fmt.Errorf("invalid checkpoint schedule %q: %w", spec, err)
	}
	return cp, nil
}

// Start begins running checkpoints in the background.
func (cp *Checkpointer) Start() {
	if cp == nil {
		return
	}
	cp.cron.Start()
}

// Stop halts the schedule and waits for a running flush to finish.
func (cp *Checkpointer) Stop() {
	if cp == nil {
		return
	}
	<-cp.cron.Stop().Done()
}

func (cp *Checkpointer) run() {
	if err := cp.cache.Flush(); err != nil {
		cp.logger.Error("checkpoint flush failed", slog.String("path", cp.cache.Path()), slog.Any("error", err))
		return
	}
	tracks, videos := cp.cache.Len()
	cp.logger.Debug("checkpoint flushed", slog.Int("tracks", tracks), slog.Int("videos", videos))
}
