package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
)

// Status — heartbeat-таблица bot_status, одна строка на инстанс.
type Status struct{}

func NewStatus() *Status { return &Status{} }

const upsertStatusSQL = `
INSERT INTO bot_status (
    instance_id, host, status, last_heartbeat, active_since,
    version, environment, clock_offset_ms, error_message
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (instance_id) DO UPDATE SET
    host = EXCLUDED.host,
    status = EXCLUDED.status,
    last_heartbeat = EXCLUDED.last_heartbeat,
    version = EXCLUDED.version,
    environment = EXCLUDED.environment,
    clock_offset_ms = EXCLUDED.clock_offset_ms,
    error_message = EXCLUDED.error_message`

func (s *Status) Upsert(ctx context.Context, tx pgx.Tx, st *models.BotStatus) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Status.Upsert: %w", err)
		}
	}()

	var errMsg any
	if st.ErrorMessage != "" {
		errMsg = st.ErrorMessage
	}

	_, err = tx.Exec(ctx, upsertStatusSQL,
		st.InstanceID,
		st.Host,
		st.Status,
		st.LastBeat,
		st.ActiveSince,
		st.Version,
		st.Environment,
		st.ClockOffset.Milliseconds(),
		errMsg,
	)
	return err
}
