package exchange

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
)

// ServerTime — GET /api/v3/time, миллисекунды epoch. Единственный вход
// для timesync; без подписи и без timestamp-параметров.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, "/api/v3/time", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrap(err, "decode server time")
	}
	if resp.ServerTime <= 0 {
		return 0, errors.New("malformed server time payload")
	}
	return resp.ServerTime, nil
}

// Klines — закрытые свечи. Публичный эндпоинт: timestamp/recvWindow сюда
// не передаём, иначе binance отвечает -1104 (unread parameters).
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	// строка kline: [openTime, "o", "h", "l", "c", "v", closeTime, ...]
	var rows [][]any
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "decode klines")
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, errors.Errorf("short kline row: %d fields", len(row))
		}
		openMs, ok := asFloat(row[0])
		if !ok {
			return nil, errors.New("bad kline open time")
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, ok := asFloat(row[i+1])
			if !ok {
				return nil, errors.Errorf("bad kline field %d", i+1)
			}
			vals[i] = v
		}
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(int64(openMs)),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return candles, nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
