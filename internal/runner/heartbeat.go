package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
	"github.com/nhsiciliano/bot-binance-nh/internal/storage"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

// heartbeatLoop раз в интервал upsert'ит строку в bot_status: хостинг и
// оператор видят, что процесс жив и насколько уехали часы.
func (r *Runner) heartbeatLoop(ctx context.Context) {
	statusRepo := storage.NewStatus()

	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	activeSince := time.Now()

	environment := "mainnet"
	if r.cfg.UseTestnet {
		environment = "testnet"
	}

	beat := func() {
		status := "running"
		errMsg := r.state.LastError()
		if errMsg != "" {
			status = "error"
		}
		st := &models.BotStatus{
			InstanceID:   instanceID,
			Host:         hostname,
			Status:       status,
			LastBeat:     time.Now(),
			ActiveSince:  activeSince,
			Version:      r.cfg.Version,
			Environment:  environment,
			ClockOffset:  r.clk.Offset(),
			ErrorMessage: errMsg,
		}
		err := r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
			return statusRepo.Upsert(ctxTx, tx, st)
		})
		if err != nil {
			logger.Error("heartbeat: %v", err)
		}
	}

	beat()
	t := time.NewTicker(r.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			beat()
		}
	}
}
