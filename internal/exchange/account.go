package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Balances — подписанный GET /api/v3/account. Критичный вызов:
// перед ним всегда принудительная синхронизация часов.
func (c *Client) Balances(ctx context.Context) (map[string]Balance, error) {
	body, err := c.signedDo(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}

	out := make(map[string]Balance, len(resp.Balances))
	for _, b := range resp.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		out[b.Asset] = Balance{Asset: b.Asset, Free: free, Locked: locked}
	}
	return out, nil
}

type Order struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
	QuoteQty    string `json:"cummulativeQuoteQty"`
}

// ExecutedAmount — исполненный объём в базовой валюте.
func (o Order) ExecutedAmount() float64 {
	v, _ := strconv.ParseFloat(o.ExecutedQty, 64)
	return v
}

// SpentQuote — потрачено/получено в котируемой валюте.
func (o Order) SpentQuote() float64 {
	v, _ := strconv.ParseFloat(o.QuoteQty, 64)
	return v
}

// MarketOrder — рыночный ордер на quoteQty USDT (quoteOrderQty, без цены).
// POST /api/v3/order, критичный путь подписи.
func (c *Client) MarketOrder(ctx context.Context, symbol, side string, quoteQty float64) (*Order, error) {
	side = strings.ToUpper(side)
	if side != "BUY" && side != "SELL" {
		return nil, errors.Errorf("unsupported order side %q", side)
	}
	if quoteQty <= 0 {
		return nil, errors.New("quoteQty must be positive")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", strconv.FormatFloat(quoteQty, 'f', 2, 64))

	body, err := c.signedDo(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	order := &Order{}
	if err := sonic.Unmarshal(body, order); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return order, nil
}
