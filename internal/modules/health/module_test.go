package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/health/service"
	timesync "github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
)

type fakeTrigger struct{ ok bool }

func (f *fakeTrigger) TriggerTick() bool { return f.ok }

func newTestMux(trig Trigger) (*http.ServeMux, *service.State, *exchange.Client) {
	cfg := &config.Config{UseTestnet: true, Symbols: []string{"BTCUSDT", "ETHUSDT"}}
	state := service.NewState()
	clk := timesync.NewClock(func(context.Context) (int64, error) {
		return time.Now().UnixMilli(), nil
	}, time.Minute)
	ex := exchange.NewClient(cfg)
	return NewMux(cfg, state, clk, ex, trig), state, ex
}

func TestLivezAlwaysOK(t *testing.T) {
	mux, _, _ := newTestMux(&fakeTrigger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzGatedByFirstTick(t *testing.T) {
	mux, state, _ := newTestMux(&fakeTrigger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	state.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunEndpoint(t *testing.T) {
	trig := &fakeTrigger{}
	mux, _, _ := newTestMux(trig)

	// только POST
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// очередь занята
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	trig.ok = true
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHealthJSON(t *testing.T) {
	mux, state, ex := newTestMux(&fakeTrigger{})
	state.TouchTick(time.Now())
	ex.SetPrice("BTCUSDT", 42000.5)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, false, resp["ready"])
	assert.Equal(t, true, resp["testnet"])
	assert.Equal(t, "unsynced", resp["clockState"])
	assert.NotZero(t, resp["lastTickUnix"])

	prices, ok := resp["lastPrices"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42000.5, prices["BTCUSDT"])
	// не прогретые символы в ответ не попадают
	_, hasETH := prices["ETHUSDT"]
	assert.False(t, hasETH)
}
