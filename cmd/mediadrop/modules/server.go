package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/memohai/mediadrop/internal/boot"
	"github.com/memohai/mediadrop/internal/config"
	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/handlers"
	"github.com/memohai/mediadrop/internal/server"
	"github.com/memohai/mediadrop/internal/stats"
	"github.com/memohai/mediadrop/internal/telegram"
	"github.com/memohai/mediadrop/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(provideDownloadHandler),
		provideServerHandler(provideWebHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDownloadHandler(log *slog.Logger, pipeline *delivery.Pipeline, st *stats.Stats) *handlers.DownloadHandler {
	return handlers.NewDownloadHandler(log, pipeline, st)
}

func provideWebHandler(log *slog.Logger, cfg config.Config, st *stats.Stats) *handlers.WebHandler {
	return handlers.NewWebHandler(log, cfg.Web.Dir, st)
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	Bot            *telegram.Bot
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	allHandlers := make([]server.Handler, 0, len(params.ServerHandlers)+1)
	allHandlers = append(allHandlers, params.ServerHandlers...)
	if params.RuntimeConfig.Mode == boot.ModeWebhook {
		allHandlers = append(allHandlers, handlers.NewWebhookHandler(params.Logger, params.Bot))
	}
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, allHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, rc *boot.RuntimeConfig) {
	fmt.Printf("Starting %s\n", version.Banner())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			logger.Info("webhook route", slog.Bool("enabled", rc.Mode == boot.ModeWebhook))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
