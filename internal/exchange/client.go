package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

const (
	mainnetBaseURL = "https://api.binance.com"
	testnetBaseURL = "https://testnet.binance.vision"
	mainnetWSURL   = "wss://stream.binance.com:9443/ws"
	testnetWSURL   = "wss://stream.testnet.binance.vision/ws"
)

// TimeSource — скорректированное время для подписанных запросов.
// Реализуется timesync-модулем.
type TimeSource interface {
	Timestamp(ctx context.Context) int64
	ForceSync(ctx context.Context) error
}

// systemClock — запасной источник, пока Clock не подвешен через SetClock.
type systemClock struct{}

func (systemClock) Timestamp(context.Context) int64 { return time.Now().UnixMilli() }
func (systemClock) ForceSync(context.Context) error { return nil }

type Client struct {
	mu       sync.RWMutex
	prices   map[string]float64
	http     *http.Client
	wsDialer *websocket.Dialer

	baseURL    string
	wsURL      string
	apiKey     string
	apiSecret  string
	recvWindow time.Duration

	clock   TimeSource
	limiter *rate.Limiter
}

func NewClient(cfg *config.Config) *Client {
	baseURL, wsURL := mainnetBaseURL, mainnetWSURL
	if cfg.UseTestnet {
		baseURL, wsURL = testnetBaseURL, testnetWSURL
	}
	return &Client{
		prices:     make(map[string]float64),
		http:       &http.Client{Timeout: 10 * time.Second},
		wsDialer:   &websocket.Dialer{},
		baseURL:    baseURL,
		wsURL:      wsURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		clock:      systemClock{},
		// спотовый REST: держимся сильно ниже лимита веса
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (c *Client) SetClock(clk TimeSource) {
	if clk != nil {
		c.clock = clk
	}
}

func (c *Client) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

func (c *Client) GetPrice(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices[symbol]
}

// ===== public endpoints =====

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// ===== signed endpoints =====

func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// signedDo выполняет подписанный запрос. На critical-путях (ордер, баланс)
// перед первой попыткой всегда принудительная синхронизация часов.
// На -1021 ровно одна пересинхронизация и один повтор того же запроса;
// второй -1021 подряд — терминальный ErrClockDrift.
func (c *Client) signedDo(ctx context.Context, method, path string, params url.Values, critical bool) ([]byte, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, errors.New("api creds empty")
	}

	for attempt := 0; ; attempt++ {
		if critical || attempt > 0 {
			if err := c.clock.ForceSync(ctx); err != nil {
				// живём на старом offset'е, запрос всё равно уходит
				logger.Error("forced time sync failed: %v", err)
			}
		}

		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		q.Set("timestamp", strconv.FormatInt(c.clock.Timestamp(ctx), 10))
		q.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		payload := q.Encode()
		payload += "&signature=" + c.sign(payload)

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var req *http.Request
		var err error
		if method == http.MethodGet {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+payload, nil)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(payload))
			if req != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.apiKey)

		body, err := c.do(req)
		if err == nil {
			return body, nil
		}
		if IsTimestampRejected(err) {
			if attempt == 0 {
				logger.Warn("timestamp rejected (-1021) on %s %s, re-syncing and retrying once", method, path)
				continue
			}
			return nil, errors.Wrapf(ErrClockDrift, "%s %s", method, path)
		}
		return nil, err
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode/100 != 2 {
		var ae struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := sonic.Unmarshal(body, &ae); err == nil && ae.Code != 0 {
			return nil, &APIError{Code: ae.Code, Msg: ae.Msg, HTTPStatus: resp.StatusCode}
		}
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
