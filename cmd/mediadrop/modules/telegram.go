package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/mediadrop/internal/boot"
	"github.com/memohai/mediadrop/internal/config"
	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/stats"
	"github.com/memohai/mediadrop/internal/telegram"
)

var TelegramModule = fx.Module(
	"telegram",
	fx.Provide(provideBot),
	fx.Invoke(startBot),
)

func provideBot(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, pipeline *delivery.Pipeline, st *stats.Stats, ring *logger.Ring) (*telegram.Bot, error) {
	return telegram.New(log, telegram.Config{
		Token:      rc.BotToken,
		OwnerID:    rc.OwnerID,
		Mode:       rc.Mode,
		WebhookURL: rc.WebhookURL(),
		RateLimit:  cfg.Telegram.RateLimit,
		RateBurst:  cfg.Telegram.RateBurst,
		Debug:      cfg.Telegram.Debug,
	}, pipeline, st, ring)
}

func startBot(lc fx.Lifecycle, bot *telegram.Bot) {
	lc.Append(fx.Hook{
		OnStart: bot.Start,
		OnStop:  bot.Stop,
	})
}
