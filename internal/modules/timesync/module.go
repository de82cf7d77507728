package timesync

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("timesync",
		fx.Provide(
			func(cfg *config.Config, ex *exchange.Client) *service.Clock {
				return service.NewClock(ex.ServerTime, cfg.SyncInterval)
			},
		),
		fx.Invoke(
			// клиент подписывает запросы временем из Clock
			func(ex *exchange.Client, clk *service.Clock) {
				ex.SetClock(clk)
			},
			runResyncLoop,
		),
	)
}

// runResyncLoop — фоновая пересинхронизация раз в SyncInterval, чтобы offset
// не протухал между тиками. Timestamp() всё равно перепроверяет возраст сам.
func runResyncLoop(lc fx.Lifecycle, cfg *config.Config, clk *service.Clock) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := clk.Sync(ctx); err != nil {
				logger.Error("initial time sync failed: %v", err)
			}
			go func() {
				t := time.NewTicker(cfg.SyncInterval)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if err := clk.Sync(ctx); err != nil {
							logger.Error("periodic time sync failed: %v", err)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
