package runner

import (
	"context"

	"go.uber.org/fx"

	"github.com/nhsiciliano/bot-binance-nh/internal/storage"
	"github.com/nhsiciliano/bot-binance-nh/internal/strategy"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			strategy.NewAnalyzer,
			storage.NewIndicators,
			storage.NewTrades,
			New,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, r *Runner) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go r.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						r.Stop()
						return nil
					},
				})
			},
		),
	)
}
