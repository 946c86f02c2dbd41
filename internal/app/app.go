package app

import (
	"context"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/executehouse/limpopo-connect/internal/config"
	"github.com/executehouse/limpopo-connect/internal/realtime"
	"github.com/executehouse/limpopo-connect/internal/repo/portalapi"
	"github.com/executehouse/limpopo-connect/internal/repo/pushchan"
	"github.com/executehouse/limpopo-connect/internal/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			pushchan.NewWebsocketProvider,
			portalapi.NewClient,

			realtime.NewMetrics,
			realtime.NewNormalizer,
			realtime.NewStore,
			realtime.NewThreadAggregator,
			realtime.NewRegistry,
			realtime.NewSender,
			realtime.NewEngine,

			server.NewController,
		),
		fx.Supply(conf),
		fx.Invoke(RegisterEngineShutdown),
		fx.Invoke(funcs...),
	)
}

// RegisterEngineShutdown closes every subscription when the app stops.
func RegisterEngineShutdown(lc fx.Lifecycle, engine *realtime.Engine) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			engine.Close()
			return nil
		},
	})
}
