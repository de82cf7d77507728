package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/health"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/postgres"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync"
	timesyncsvc "github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
	"github.com/nhsiciliano/bot-binance-nh/internal/notify"
	"github.com/nhsiciliano/bot-binance-nh/internal/runner"
	"github.com/nhsiciliano/bot-binance-nh/pkg/db"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
	"github.com/nhsiciliano/bot-binance-nh/pkg/tracing"
)

const serviceName = "bot-binance-nh"

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			exchange.NewClient,
			// Notifier: если TELEGRAM_* нет — используем stdout
			func(cfg *config.Config, ex *exchange.Client, clk *timesyncsvc.Clock, txm *db.PgTxManager) notify.Notifier {
				if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, ex, clk, txm); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
			func(r *runner.Runner) health.Trigger { return r },
		),
		config.Module(),
		postgres.Module(),
		timesync.Module(),
		runner.Module(),
		health.Module(),
		fx.Invoke(
			initTracing,
			startTelegram,
		),
	)
	app.Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.TracingEnabled {
		return nil
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.JaegerHost,
		Port: cfg.JaegerPort,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}

func startTelegram(lc fx.Lifecycle, n notify.Notifier) {
	tg, ok := n.(*notify.Telegram)
	if !ok {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return tg.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			tg.Stop()
			return nil
		},
	})
}
