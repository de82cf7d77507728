package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type countingClock struct {
	syncs atomic.Int64
}

func (c *countingClock) Timestamp(context.Context) int64 { return time.Now().UnixMilli() }
func (c *countingClock) ForceSync(context.Context) error { c.syncs.Add(1); return nil }

func newTestClient(baseURL string) (*Client, *countingClock) {
	c := NewClient(&config.Config{
		APIKey:     "test-key",
		APISecret:  "test-secret",
		RecvWindow: 120 * time.Second,
	})
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	clk := &countingClock{}
	c.SetClock(clk)
	return c, clk
}

func TestServerTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/time", r.URL.Path)
		_, _ = w.Write([]byte(`{"serverTime":1699900000123}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	ms, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1699900000123), ms)
}

func TestServerTimeMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"whatever":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.ServerTime(context.Background())
	assert.Error(t, err)
}

func TestKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		// публичный эндпоинт: timestamp/recvWindow не передаются
		assert.Empty(t, r.URL.Query().Get("timestamp"))
		assert.Empty(t, r.URL.Query().Get("recvWindow"))
		_, _ = w.Write([]byte(`[
			[1699900000000,"42000.1","42100.5","41900.0","42050.2","12.5",1699900299999,"0",10,"0","0","0"],
			[1699900300000,"42050.2","42200.0","42000.0","42150.0","9.8",1699900599999,"0",8,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	candles, err := c.Klines(context.Background(), "BTCUSDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 42050.2, candles[0].Close)
	assert.Equal(t, 42150.0, candles[1].Close)
	assert.Equal(t, int64(1699900000000), candles[0].OpenTime.UnixMilli())
}

func TestSignedRequestCarriesTimestampAndSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Equal(t, "120000", q.Get("recvWindow"))
		assert.NotEmpty(t, q.Get("signature"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, clk := newTestClient(srv.URL)
	_, err := c.signedDo(context.Background(), http.MethodGet, "/api/v3/account", nil, true)
	require.NoError(t, err)
	// критичный путь: принудительная синхронизация перед первой попыткой
	assert.Equal(t, int64(1), clk.syncs.Load())
}

func TestTimestampRejectedResyncsAndRetriesOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1021,"msg":"Timestamp for this request is outside of the recvWindow."}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, clk := newTestClient(srv.URL)
	_, err := c.signedDo(context.Background(), http.MethodGet, "/api/v3/account", nil, false)
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load(), "exactly one retry")
	assert.Equal(t, int64(1), clk.syncs.Load(), "exactly one forced re-sync")
}

func TestSecondTimestampRejectionIsTerminal(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1021,"msg":"Timestamp for this request is outside of the recvWindow."}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.signedDo(context.Background(), http.MethodGet, "/api/v3/account", nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClockDrift)
	assert.Equal(t, int64(2), hits.Load(), "no retry storm after the second -1021")
}

func TestOtherAPIErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.signedDo(context.Background(), http.MethodPost, "/api/v3/order", url.Values{"symbol": {"BTCUSDT"}}, false)
	require.Error(t, err)

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, -2010, ae.Code)
	assert.Equal(t, int64(1), hits.Load())
}

func TestMarketOrderValidation(t *testing.T) {
	c, _ := newTestClient("http://127.0.0.1:0")
	_, err := c.MarketOrder(context.Background(), "BTCUSDT", "HOLD", 10)
	assert.Error(t, err)
	_, err = c.MarketOrder(context.Background(), "BTCUSDT", "BUY", 0)
	assert.Error(t, err)
}
