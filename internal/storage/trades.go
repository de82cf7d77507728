package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
)

// Trades — append-only журнал сделок.
type Trades struct{}

func NewTrades() *Trades { return &Trades{} }

const insertTradeSQL = `
INSERT INTO trades (
    ts, symbol, side, amount, price, total,
    order_id, strategy_signal, rsi_value, macd_value, notes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id`

func (s *Trades) Insert(ctx context.Context, tx pgx.Tx, t *models.Trade) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.Insert: %w", err)
		}
	}()

	err = tx.QueryRow(ctx, insertTradeSQL,
		t.Timestamp,
		t.Symbol,
		string(t.Side),
		t.Amount,
		t.Price,
		t.Total,
		t.OrderID,
		string(t.Signal),
		nullable(t.RSI),
		nullable(t.MACDHist),
		t.Notes,
	).Scan(&id)
	return id, err
}

// RecentBySymbol — последние сделки по символу (команда /trades в Telegram).
func (s *Trades) RecentBySymbol(ctx context.Context, tx pgx.Tx, symbol string, limit int) (out []*models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.RecentBySymbol: %w", err)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT ts, symbol, side, amount, price, total, order_id, strategy_signal, notes
		   FROM trades WHERE symbol = $1 ORDER BY ts DESC LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t := &models.Trade{}
		var side, signal string
		if err = rows.Scan(&t.Timestamp, &t.Symbol, &side, &t.Amount, &t.Price,
			&t.Total, &t.OrderID, &signal, &t.Notes); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		t.Signal = models.Side(signal)
		out = append(out, t)
	}
	return out, rows.Err()
}
