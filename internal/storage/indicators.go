package storage

import (
	"context"
	"fmt"
	"math"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
)

// Indicators — снапшоты индикаторов, upsert по (symbol, ts, timeframe):
// повторный прогон того же тика просто перезаписывает строку.
type Indicators struct{}

func NewIndicators() *Indicators { return &Indicators{} }

const upsertIndicatorsSQL = `
INSERT INTO indicators (
    symbol, ts, timeframe, close_price,
    rsi, macd, macd_signal, macd_hist,
    ema_short, ema_long, bb_upper, bb_middle, bb_lower,
    rsi_signal, macd_signal_value, bb_signal, combined_signal,
    signal_strength, parameters
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (symbol, ts, timeframe) DO UPDATE SET
    close_price = EXCLUDED.close_price,
    rsi = EXCLUDED.rsi,
    macd = EXCLUDED.macd,
    macd_signal = EXCLUDED.macd_signal,
    macd_hist = EXCLUDED.macd_hist,
    ema_short = EXCLUDED.ema_short,
    ema_long = EXCLUDED.ema_long,
    bb_upper = EXCLUDED.bb_upper,
    bb_middle = EXCLUDED.bb_middle,
    bb_lower = EXCLUDED.bb_lower,
    rsi_signal = EXCLUDED.rsi_signal,
    macd_signal_value = EXCLUDED.macd_signal_value,
    bb_signal = EXCLUDED.bb_signal,
    combined_signal = EXCLUDED.combined_signal,
    signal_strength = EXCLUDED.signal_strength,
    parameters = EXCLUDED.parameters`

func (s *Indicators) Upsert(ctx context.Context, tx pgx.Tx, snap *models.Snapshot, params models.Parameters) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Indicators.Upsert: %w", err)
		}
	}()

	var paramsJSON []byte
	paramsJSON, err = sonic.Marshal(params)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, upsertIndicatorsSQL,
		snap.Symbol,
		snap.Candle.OpenTime,
		snap.Timeframe,
		snap.Candle.Close,
		nullable(snap.RSI),
		nullable(snap.MACD),
		nullable(snap.MACDSignal),
		nullable(snap.MACDHist),
		nullable(snap.EMAShort),
		nullable(snap.EMALong),
		nullable(snap.BBUpper),
		nullable(snap.BBMiddle),
		nullable(snap.BBLower),
		string(snap.RSISide),
		string(snap.MACDSide),
		string(snap.BBSide),
		string(snap.Combined),
		snap.Strength,
		paramsJSON,
	)
	return err
}

// nullable превращает NaN прогрева индикатора в NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
