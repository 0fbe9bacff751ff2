// Package extractor acquires media through an external yt-dlp compatible tool.
//
// Acquisition runs in two phases: a metadata-only invocation that selects a
// format and reports title, size and live status, then a data invocation
// that writes the recoded media to stdout.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/memohai/mediadrop/internal/media"
	"github.com/memohai/mediadrop/internal/resolve"
)

// DefaultBinary is the extraction tool looked up in PATH.
const DefaultBinary = "yt-dlp"

// notFoundSignature ends yt-dlp's diagnostics when the target does not exist.
var notFoundSignature = []byte("truncated.\n")

var errBodyClosed = errors.New("media body closed")

// Config tunes the extractor. Zero values select defaults.
type Config struct {
	Binary string
	// MaxFileSize rejects assets whose reported size reaches it.
	MaxFileSize int64
	// BufferLimit caps the in-memory fallback used when no size is reported.
	BufferLimit int64
	// MaxConcurrent bounds concurrent acquisitions; 0 means unlimited.
	MaxConcurrent int
	// DumpDir, when set, receives the raw metadata JSON of every request.
	DumpDir string
}

// Extractor implements the two-phase acquisition protocol.
type Extractor struct {
	runner Runner
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New creates an extractor that launches processes through runner.
func New(log *slog.Logger, runner Runner, cfg Config) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = media.MaxFileSize
	}
	if cfg.BufferLimit <= 0 {
		cfg.BufferLimit = cfg.MaxFileSize
	}
	e := &Extractor{
		runner: runner,
		cfg:    cfg,
		logger: log.With(slog.String("service", "extractor")),
	}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return e
}

type metadata struct {
	ID       string   `json:"id"`
	FormatID string   `json:"format_id"`
	Title    string   `json:"title"`
	Filesize *float64 `json:"filesize"`
	IsLive   bool     `json:"is_live"`
}

// Acquire fetches src as kind. The returned handle streams from the running
// process when the size was known up front; otherwise its body is already
// fully buffered.
func (e *Extractor) Acquire(ctx context.Context, src resolve.Source, kind media.Kind) (*media.Handle, error) {
	if src.IsZero() {
		return nil, fmt.Errorf("%w: empty source", media.ErrInvalidLink)
	}
	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: wait for extractor slot: %v", media.ErrMetadataFetchFailed, err)
	}

	start := time.Now()
	meta, err := e.fetchMetadata(ctx, src, kind)
	if err != nil {
		release()
		return nil, err
	}
	if meta.IsLive {
		release()
		return nil, fmt.Errorf("%w: %s", media.ErrIsStream, src)
	}
	size := int64(-1)
	if reported := meta.Filesize; reported != nil {
		switch {
		case *reported >= float64(e.cfg.MaxFileSize):
			release()
			return nil, fmt.Errorf("%w: %.0f bytes reported for %s", media.ErrTooLarge, *reported, src)
		case *reported < 0:
			e.logger.WarnContext(ctx, "ignoring negative reported size", slog.String("uri", src.String()), slog.Float64("filesize", *reported))
		default:
			size = int64(*reported)
		}
	}

	proc, err := e.runner.Start(ctx, e.cfg.Binary, dataArgs(src, kind, meta.FormatID)...)
	if err != nil {
		release()
		e.logger.ErrorContext(ctx, "failed to launch data phase", slog.String("uri", src.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", media.ErrDataFetchFailed, err)
	}
	if proc.Stdout() == nil {
		_ = proc.Kill()
		_ = proc.Wait()
		release()
		e.logger.ErrorContext(ctx, "data phase has no stdout", slog.String("uri", src.String()))
		return nil, fmt.Errorf("%w: no stdout", media.ErrDataFetchFailed)
	}

	e.logger.InfoContext(ctx, "acquisition started",
		slog.String("uri", src.String()),
		slog.String("kind", kind.String()),
		slog.String("format_id", meta.FormatID),
		slog.Int64("size", size),
		slog.Duration("metadata_time", time.Since(start)),
	)

	if size >= 0 {
		body := &processBody{proc: proc, r: proc.Stdout(), release: release}
		return media.NewHandle(kind, meta.Title, size, body), nil
	}
	return e.buffer(ctx, src, kind, meta, proc, release)
}

func (e *Extractor) fetchMetadata(ctx context.Context, src resolve.Source, kind media.Kind) (metadata, error) {
	res, err := e.runner.Run(ctx, e.cfg.Binary, metadataArgs(src, kind)...)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to launch metadata phase", slog.String("uri", src.String()), slog.Any("error", err))
		return metadata{}, fmt.Errorf("%w: %v", media.ErrMetadataFetchFailed, err)
	}
	if res.ExitCode != 0 {
		if bytes.HasSuffix(res.Stderr, notFoundSignature) {
			return metadata{}, fmt.Errorf("%w: %s", media.ErrNotFound, src)
		}
		e.logger.ErrorContext(ctx, "metadata phase exited unsuccessfully",
			slog.String("uri", src.String()),
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", string(res.Stderr)),
		)
		return metadata{}, fmt.Errorf("%w: exit code %d", media.ErrMetadataFetchFailed, res.ExitCode)
	}
	var meta metadata
	if err := json.Unmarshal(res.Stdout, &meta); err != nil {
		e.logger.ErrorContext(ctx, "failed to decode metadata", slog.String("uri", src.String()), slog.Any("error", err))
		return metadata{}, fmt.Errorf("%w: decode metadata: %v", media.ErrMetadataFetchFailed, err)
	}
	e.dumpMetadata(ctx, meta.ID, res.Stdout)
	return meta, nil
}

// buffer drains the data phase into memory for sources without a known size.
func (e *Extractor) buffer(ctx context.Context, src resolve.Source, kind media.Kind, meta metadata, proc Process, release func()) (*media.Handle, error) {
	defer release()
	limit := e.cfg.BufferLimit
	data, err := io.ReadAll(io.LimitReader(proc.Stdout(), limit+1))
	if err != nil {
		_ = proc.Kill()
		_ = proc.Wait()
		return nil, fmt.Errorf("%w: read output: %v", media.ErrDataFetchFailed, err)
	}
	if int64(len(data)) > limit {
		_ = proc.Kill()
		_ = proc.Wait()
		return nil, fmt.Errorf("%w: output of %s exceeded %d bytes", media.ErrTooLarge, src, limit)
	}
	if err := proc.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "data phase exited unsuccessfully", slog.String("uri", src.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", media.ErrDataFetchFailed, err)
	}
	h := media.NewHandle(kind, meta.Title, int64(len(data)), io.NopCloser(bytes.NewReader(data)))
	h.SizeExact = true
	return h, nil
}

func (e *Extractor) dumpMetadata(ctx context.Context, id string, raw []byte) {
	if e.cfg.DumpDir == "" || id == "" {
		return
	}
	target := filepath.Join(e.cfg.DumpDir, filepath.Base(id)+".json")
	if err := os.WriteFile(target, raw, 0o644); err != nil {
		e.logger.WarnContext(ctx, "failed to dump metadata", slog.String("path", target), slog.Any("error", err))
	}
}

func (e *Extractor) acquireSlot(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { e.sem.Release(1) }) }, nil
}

func metadataArgs(src resolve.Source, kind media.Kind) []string {
	args := make([]string, 0, 4)
	if kind == media.Audio {
		args = append(args, "-x")
	}
	return append(args, "--no-download", "-J", src.String())
}

func dataArgs(src resolve.Source, kind media.Kind, formatID string) []string {
	var args []string
	switch kind {
	case media.Audio:
		args = []string{"--audio-format", "mp3", "-x"}
	default:
		args = []string{"--recode-video", "mp4"}
	}
	return append(args,
		"-f", formatID,
		"--embed-metadata",
		"--embed-thumbnail",
		"-o", "-",
		src.String(),
	)
}

// processBody streams a running process's stdout. The process is reaped at
// EOF; a failed exit turns EOF into an error so truncated output is never
// mistaken for a complete asset.
type processBody struct {
	proc    Process
	r       io.Reader
	release func()

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (b *processBody) Read(p []byte) (int, error) {
	if err := b.loadErr(); err != nil {
		return 0, err
	}
	n, err := b.r.Read(p)
	switch {
	case err == io.EOF:
		b.finish(false, nil)
		return n, b.loadErr()
	case err != nil:
		b.finish(true, err)
		return n, b.loadErr()
	}
	return n, nil
}

func (b *processBody) loadErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *processBody) Close() error {
	b.finish(true, nil)
	return nil
}

func (b *processBody) finish(kill bool, readErr error) {
	b.once.Do(func() {
		if kill {
			_ = b.proc.Kill()
		}
		waitErr := b.proc.Wait()
		var err error
		switch {
		case readErr != nil:
			err = fmt.Errorf("%w: read output: %v", media.ErrDataFetchFailed, readErr)
		case kill:
			err = errBodyClosed
		case waitErr != nil:
			err = fmt.Errorf("%w: extractor exited: %v", media.ErrDataFetchFailed, waitErr)
		default:
			err = io.EOF
		}
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		b.release()
	})
}
