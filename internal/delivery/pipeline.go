// Package delivery sequences link resolution, cache lookup, acquisition,
// upload and cleanup for both the chat and the direct download paths.
package delivery

import (
	"context"
	"log/slog"

	"github.com/memohai/mediadrop/internal/media"
	"github.com/memohai/mediadrop/internal/resolve"
)

// Acquirer retrieves media for a resolved source.
type Acquirer interface {
	Acquire(ctx context.Context, src resolve.Source, kind media.Kind) (*media.Handle, error)
}

// IDStore maps canonical URIs to destination identifiers.
type IDStore interface {
	Get(uri string, kind media.Kind) (string, bool)
	Set(uri string, kind media.Kind, id string)
}

// Outcome is the result of AcquireOrReuse. Exactly one of Media and
// ReusedID is set.
type Outcome struct {
	Source   resolve.Source
	Media    *media.Handle
	ReusedID string
}

// Reused reports whether the outcome is a cache hit.
func (o Outcome) Reused() bool { return o.ReusedID != "" }

// Pipeline is the entry point shared by the chat and HTTP consumers.
type Pipeline struct {
	acquirer Acquirer
	ids      IDStore
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. ids may be nil for consumers that never
// reuse uploads.
func NewPipeline(log *slog.Logger, acquirer Acquirer, ids IDStore) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		acquirer: acquirer,
		ids:      ids,
		logger:   log.With(slog.String("service", "delivery")),
	}
}

// AcquireOrReuse resolves rawLink and returns either a cached destination id
// or freshly acquired media.
func (p *Pipeline) AcquireOrReuse(ctx context.Context, rawLink string, kind media.Kind) (Outcome, error) {
	src, err := resolve.Resolve(rawLink)
	if err != nil {
		return Outcome{}, err
	}
	if p.ids != nil {
		if id, ok := p.ids.Get(src.String(), kind); ok {
			p.logger.DebugContext(ctx, "cache hit", slog.String("uri", src.String()), slog.String("kind", kind.String()))
			return Outcome{Source: src, ReusedID: id}, nil
		}
	}
	h, err := p.acquirer.Acquire(ctx, src, kind)
	if err != nil {
		return Outcome{Source: src}, err
	}
	return Outcome{Source: src, Media: h}, nil
}

// Acquire resolves rawLink and acquires it without consulting the cache.
func (p *Pipeline) Acquire(ctx context.Context, rawLink string, kind media.Kind) (*media.Handle, error) {
	src, err := resolve.Resolve(rawLink)
	if err != nil {
		return nil, err
	}
	return p.acquirer.Acquire(ctx, src, kind)
}

// Record stores the destination id returned by a completed upload.
func (p *Pipeline) Record(src resolve.Source, kind media.Kind, id string) {
	if p.ids == nil || src.IsZero() || id == "" {
		return
	}
	p.ids.Set(src.String(), kind, id)
}
