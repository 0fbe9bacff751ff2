// Package telegram runs the chat bot front end: it receives updates by
// webhook or long polling, parses commands and talks to the Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/stats"
)

// Update delivery modes.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config configures the bot.
type Config struct {
	Token      string
	OwnerID    int64
	Mode       string
	WebhookURL string
	// RateLimit caps outbound requests per second; 0 disables throttling.
	RateLimit float64
	RateBurst int
	Debug     bool
}

// Bot is a running Telegram bot serving media commands.
type Bot struct {
	api        botAPI
	username   string
	caption    string
	ownerID    int64
	mode       string
	webhookURL string
	limiter    *rate.Limiter

	deliverer *delivery.Deliverer
	stats     *stats.Stats
	ring      *logger.Ring
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	active atomic.Bool
}

// New connects to the Bot API and prepares a bot delivering through
// pipeline. st and ring may be nil.
func New(log *slog.Logger, cfg Config, pipeline *delivery.Pipeline, st *stats.Stats, ring *logger.Ring) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if err := tgbotapi.SetLogger(&slogBotLogger{log: log.With(slog.String("component", "tgbotapi"))}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	api.Debug = cfg.Debug
	return newBot(log, api, api.Self.UserName, cfg, pipeline, st, ring), nil
}

func newBot(log *slog.Logger, api botAPI, username string, cfg Config, pipeline *delivery.Pipeline, st *stats.Stats, ring *logger.Ring) *Bot {
	if log == nil {
		log = slog.Default()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeWebhook
	}
	b := &Bot{
		api:        api,
		username:   username,
		caption:    "@" + username,
		ownerID:    cfg.OwnerID,
		mode:       mode,
		webhookURL: cfg.WebhookURL,
		stats:      st,
		ring:       ring,
		logger:     log.With(slog.String("service", "telegram")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.deliverer = delivery.NewDeliverer(log, pipeline, b, b)
	return b
}

// Username returns the bot's @username without the at sign.
func (b *Bot) Username() string { return b.username }

// Active reports whether the bot has started and not yet stopped.
func (b *Bot) Active() bool { return b.active.Load() }

// Start registers the command list, begins receiving updates and greets the
// owner.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.request(ctx, tgbotapi.NewSetMyCommands(botCommands()...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}

	switch b.mode {
	case ModePolling:
		if _, err := b.request(ctx, tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 30
		b.poll(b.api.GetUpdatesChan(updateConfig))
	default:
		webhook, err := tgbotapi.NewWebhook(b.webhookURL)
		if err != nil {
			return fmt.Errorf("webhook url: %w", err)
		}
		webhook.DropPendingUpdates = true
		if _, err := b.request(ctx, webhook); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
	}

	if b.ring != nil {
		b.ring.OnFirst(b.announceLogs)
	}
	b.active.Store(true)
	if _, err := b.SendText(ctx, b.ownerID, 0, "ON"); err != nil {
		b.logger.Warn("greet owner", slog.Any("error", err))
	}
	b.logger.Info("started", slog.String("username", b.username), slog.String("mode", b.mode))
	return nil
}

// Stop detaches from Telegram, tells the owner and waits for in-flight
// requests until ctx expires.
func (b *Bot) Stop(ctx context.Context) error {
	var result error
	if b.mode == ModePolling {
		b.api.StopReceivingUpdates()
	} else if _, err := b.request(ctx, tgbotapi.DeleteWebhookConfig{}); err != nil {
		result = multierror.Append(result, fmt.Errorf("delete webhook: %w", err))
	}
	if _, err := b.SendText(ctx, b.ownerID, 0, "OFF"); err != nil {
		result = multierror.Append(result, fmt.Errorf("notify owner: %w", err))
	}
	b.active.Store(false)
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = multierror.Append(result, fmt.Errorf("wait for handlers: %w", ctx.Err()))
	}
	b.logger.Info("stopped")
	return result
}

// Dispatch handles update in its own goroutine.
func (b *Bot) Dispatch(update tgbotapi.Update) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()
	go func() {
		defer b.wg.Done()
		if err := b.handleUpdate(b.ctx, update); err != nil {
			b.logger.Error("handle update failed", slog.Int("update_id", update.UpdateID), slog.Any("error", err))
		}
	}()
}

// HandleWebhook decodes an update posted by Telegram and dispatches it.
func (b *Bot) HandleWebhook(r *http.Request) error {
	if r.Method != http.MethodPost {
		return fmt.Errorf("wrong HTTP method %s, expected POST", r.Method)
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	b.Dispatch(update)
	return nil
}

func (b *Bot) poll(updates tgbotapi.UpdatesChannel) {
	b.mu.Lock()
	b.wg.Add(1)
	b.mu.Unlock()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					b.logger.Info("updates channel closed")
					return
				}
				b.Dispatch(update)
			}
		}
	}()
}

func (b *Bot) announceLogs() {
	if !b.active.Load() {
		return
	}
	if _, err := b.SendText(b.ctx, b.ownerID, 0, "New logs available"); err != nil {
		b.logger.Debug("announce logs", slog.Any("error", err))
	}
}

func (b *Bot) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(c)
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return b.api.Request(c)
}
