package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/media"
)

const cleanupAttempts = 3

// Notifier posts, edits and deletes text messages in a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Uploader delivers media to a chat, either as a fresh upload returning the
// platform's destination id or by reference to a previous upload.
type Uploader interface {
	Upload(ctx context.Context, chatID int64, replyTo int, h *media.Handle) (string, error)
	SendCached(ctx context.Context, chatID int64, replyTo int, kind media.Kind, id string) error
}

// Request is a single chat media request.
type Request struct {
	ChatID  int64
	ReplyTo int
	Link    string
	Kind    media.Kind
}

// Deliverer runs the chat delivery state machine.
type Deliverer struct {
	pipeline *Pipeline
	uploader Uploader
	notifier Notifier
	logger   *slog.Logger

	cleanupBackoff time.Duration
}

// NewDeliverer creates a deliverer on top of pipeline.
func NewDeliverer(log *slog.Logger, pipeline *Pipeline, uploader Uploader, notifier Notifier) *Deliverer {
	if log == nil {
		log = slog.Default()
	}
	return &Deliverer{
		pipeline:       pipeline,
		uploader:       uploader,
		notifier:       notifier,
		logger:         log.With(slog.String("service", "deliverer")),
		cleanupBackoff: 200 * time.Millisecond,
	}
}

// Deliver handles req end to end. Acquisition failures are reported to the
// user and returned; a failed upload leaves the progress indicator in place.
func (d *Deliverer) Deliver(ctx context.Context, req Request) error {
	log := d.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.Int64("chat_id", req.ChatID),
		slog.String("kind", req.Kind.String()),
	)
	ctx = logger.WithContext(ctx, log)

	link := strings.TrimSpace(req.Link)
	if link == "" {
		if _, err := d.notifier.SendText(ctx, req.ChatID, req.ReplyTo, UsageText(req.Kind)); err != nil {
			return fmt.Errorf("send usage: %w", err)
		}
		return nil
	}

	progressID, err := d.notifier.SendText(ctx, req.ChatID, req.ReplyTo, ProgressText(req.Kind))
	if err != nil {
		return fmt.Errorf("send progress: %w", err)
	}

	outcome, err := d.pipeline.AcquireOrReuse(ctx, link, req.Kind)
	if err != nil {
		log.WarnContext(ctx, "acquisition failed", slog.String("link", link), slog.Any("error", err))
		if editErr := d.notifier.EditText(ctx, req.ChatID, progressID, MessageFor(err, req.Kind)); editErr != nil {
			log.ErrorContext(ctx, "report failure", slog.Any("error", editErr))
		}
		return err
	}

	if outcome.Reused() {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return d.uploader.SendCached(gctx, req.ChatID, req.ReplyTo, req.Kind, outcome.ReusedID)
		})
		g.Go(func() error {
			d.cleanup(ctx, req.ChatID, progressID)
			return nil
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("send cached %s: %w", req.Kind, err)
		}
		log.InfoContext(ctx, "delivered from cache", slog.String("uri", outcome.Source.String()))
		return nil
	}

	h := outcome.Media
	defer func() {
		if err := h.Close(); err != nil {
			log.DebugContext(ctx, "close media", slog.Any("error", err))
		}
	}()
	start := time.Now()
	id, err := d.uploader.Upload(ctx, req.ChatID, req.ReplyTo, h)
	if err != nil {
		log.ErrorContext(ctx, "upload failed", slog.String("uri", outcome.Source.String()), slog.Any("error", err))
		return fmt.Errorf("upload %s: %w", req.Kind, err)
	}
	d.pipeline.Record(outcome.Source, req.Kind, id)
	d.cleanup(ctx, req.ChatID, progressID)
	log.InfoContext(ctx, "delivered",
		slog.String("uri", outcome.Source.String()),
		slog.Int64("size", h.Size),
		slog.Duration("upload_time", time.Since(start)),
	)
	return nil
}

// cleanup removes the progress indicator. Failures are logged only.
func (d *Deliverer) cleanup(ctx context.Context, chatID int64, messageID int) {
	log := logger.FromContext(ctx)
	var err error
	for attempt := 1; attempt <= cleanupAttempts; attempt++ {
		if err = d.notifier.Delete(ctx, chatID, messageID); err == nil {
			return
		}
		if attempt == cleanupAttempts {
			break
		}
		select {
		case <-ctx.Done():
			log.WarnContext(ctx, "progress cleanup cancelled", slog.Any("error", ctx.Err()))
			return
		case <-time.After(time.Duration(attempt) * d.cleanupBackoff):
		}
	}
	log.WarnContext(ctx, "progress cleanup failed",
		slog.Int("message_id", messageID),
		slog.Int("attempts", cleanupAttempts),
		slog.Any("error", err),
	)
}
