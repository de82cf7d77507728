package runner

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	"github.com/nhsiciliano/bot-binance-nh/internal/models"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	healthsvc "github.com/nhsiciliano/bot-binance-nh/internal/modules/health/service"
	timesync "github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
	"github.com/nhsiciliano/bot-binance-nh/internal/notify"
	"github.com/nhsiciliano/bot-binance-nh/internal/storage"
	"github.com/nhsiciliano/bot-binance-nh/internal/strategy"
	"github.com/nhsiciliano/bot-binance-nh/pkg/db"
	"github.com/nhsiciliano/bot-binance-nh/pkg/logger"
)

const quoteAsset = "USDT"

type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg   *config.Config
	ex    *exchange.Client
	clk   *timesync.Clock
	an    *strategy.Analyzer
	txm   *db.PgTxManager
	snaps *storage.Indicators
	log   *storage.Trades
	n     notify.Notifier
	state *healthsvc.State

	manual chan struct{} // ручной /run, ёмкость 1

	mu         sync.Mutex // lastSignal
	lastSignal map[string]models.Side
}

func New(
	cfg *config.Config,
	ex *exchange.Client,
	clk *timesync.Clock,
	an *strategy.Analyzer,
	txm *db.PgTxManager,
	snaps *storage.Indicators,
	tradeLog *storage.Trades,
	n notify.Notifier,
	state *healthsvc.State,
) *Runner {
	return &Runner{
		cfg:        cfg,
		ex:         ex,
		clk:        clk,
		an:         an,
		txm:        txm,
		snaps:      snaps,
		log:        tradeLog,
		n:          n,
		state:      state,
		manual:     make(chan struct{}, 1),
		lastSignal: make(map[string]models.Side),
	}
}

// TriggerTick ставит внеплановый тик в очередь. false — очередь занята,
// тик и так скоро пойдёт.
func (r *Runner) TriggerTick() bool {
	select {
	case r.manual <- struct{}{}:
		return true
	default:
		return false
	}
}

func (r *Runner) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(parent)

	// тёплые last-price по вотчлисту через websocket
	for _, sym := range r.cfg.Symbols {
		go r.consumeTicker(r.ctx, sym)
	}

	go r.heartbeatLoop(r.ctx)

	mode := "mainnet"
	if r.cfg.UseTestnet {
		mode = "testnet"
	}
	r.n.Sendf("📈 Bot started: %d symbols, timeframe %s, %s, trading=%v",
		len(r.cfg.Symbols), r.cfg.Timeframe, mode, r.cfg.TradingEnabled)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	// первый тик сразу, не ждём интервала
	r.tick(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick(r.ctx)
		case <-r.manual:
			logger.Info("manual tick triggered")
			r.tick(r.ctx)
		}
	}
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) consumeTicker(ctx context.Context, symbol string) {
	for range r.ex.StreamMiniTicker(ctx, symbol) {
		// цена оседает в кеше клиента, поток просто дренируем
	}
}

// tick — один проход fetch-compute-decide-persist по всем символам.
// Вызывается только из Start-горутины, перекрытие тиков исключено.
func (r *Runner) tick(ctx context.Context) {
	span := opentracing.StartSpan("tick")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	for _, symbol := range r.cfg.Symbols {
		if err := r.processSymbol(ctx, symbol); err != nil {
			logger.Error("tick %s: %v", symbol, err)
			r.state.SetLastError(err.Error())
		}
	}

	r.state.TouchTick(time.Now())
	r.state.SetReady(true)
}

func (r *Runner) processSymbol(ctx context.Context, symbol string) error {
	candles, err := r.ex.Klines(ctx, symbol, r.cfg.Timeframe, r.cfg.KlineLimit)
	if err != nil {
		return errors.Wrap(err, "fetch klines")
	}

	snap, err := r.an.Analyze(symbol, r.cfg.Timeframe, candles)
	if err != nil {
		return errors.Wrap(err, "analyze")
	}

	logger.Info("[EVAL] %s rsi=%.2f hist=%.6f signal=%s strength=%.1f",
		symbol, snap.RSI, snap.MACDHist, snap.Combined, snap.Strength)

	err = r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return r.snaps.Upsert(ctxTx, tx, snap, r.an.Parameters())
	})
	if err != nil {
		return errors.Wrap(err, "persist snapshot")
	}

	r.handleSignal(ctx, snap)
	return nil
}

// markPrice — живая цена из websocket-кеша; пока стрим не прогрелся,
// берём close последней свечи.
func (r *Runner) markPrice(snap *models.Snapshot) float64 {
	if px := r.ex.GetPrice(snap.Symbol); px > 0 {
		return px
	}
	return snap.Candle.Close
}

func (r *Runner) handleSignal(ctx context.Context, snap *models.Snapshot) {
	r.mu.Lock()
	repeated := r.lastSignal[snap.Symbol] == snap.Combined
	r.lastSignal[snap.Symbol] = snap.Combined
	r.mu.Unlock()

	if snap.Combined == models.SideNeutral || repeated {
		return
	}

	emoji := "🟢"
	if snap.Combined == models.SideSell {
		emoji = "🔴"
	}
	r.n.Sendf("%s %s %s @ %.4f (strength %.1f)\n%s",
		emoji, strings.ToUpper(string(snap.Combined)), snap.Symbol,
		r.markPrice(snap), snap.Strength, strings.Join(snap.Reasons, "\n"))

	if !r.cfg.TradingEnabled {
		return
	}
	if err := r.executeTrade(ctx, snap); err != nil {
		logger.Error("trade %s %s: %v", snap.Combined, snap.Symbol, err)
		r.state.SetLastError(err.Error())
		if errors.Is(err, exchange.ErrClockDrift) {
			// повторный -1021 после пересинхронизации: часы хоста уехали,
			// это проблема оператора, а не джиттер сети
			r.n.SendError("persistent clock drift against exchange, check host NTP: " + err.Error())
			return
		}
		r.n.SendError(err.Error())
	}
}

func (r *Runner) executeTrade(ctx context.Context, snap *models.Snapshot) error {
	// баланс и ордер идут по критичному пути: подпись с принудительной
	// синхронизацией часов внутри клиента
	balances, err := r.ex.Balances(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch balances")
	}

	base := strings.TrimSuffix(snap.Symbol, quoteAsset)
	quote := balances[quoteAsset].Free
	px := r.markPrice(snap)

	var quoteQty float64
	switch snap.Combined {
	case models.SideBuy:
		quoteQty = r.cfg.MaxPositionQuote
		if quote < quoteQty {
			logger.Warn("skip BUY %s: quote balance %.2f < %.2f", snap.Symbol, quote, quoteQty)
			return nil
		}
	case models.SideSell:
		held := balances[base].Free * px
		if held < 10 { // спотовый minNotional
			logger.Warn("skip SELL %s: held %.2f %s below min notional", snap.Symbol, held, quoteAsset)
			return nil
		}
		quoteQty = held
		if quoteQty > r.cfg.MaxPositionQuote {
			quoteQty = r.cfg.MaxPositionQuote
		}
	default:
		return nil
	}

	order, err := r.ex.MarketOrder(ctx, snap.Symbol, strings.ToUpper(string(snap.Combined)), quoteQty)
	if err != nil {
		return errors.Wrap(err, "place order")
	}

	trade := &models.Trade{
		Timestamp: time.Now(),
		Symbol:    snap.Symbol,
		Side:      snap.Combined,
		Amount:    order.ExecutedAmount(),
		Price:     px,
		Total:     order.SpentQuote(),
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Signal:    snap.Combined,
		RSI:       snap.RSI,
		MACDHist:  snap.MACDHist,
		Notes:     strings.Join(snap.Reasons, "; "),
	}
	err = r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := r.log.Insert(ctxTx, tx, trade)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "log trade")
	}

	r.n.Sendf("✅ Order filled: %s %s amount=%.6f total=%.2f %s",
		strings.ToUpper(string(snap.Combined)), snap.Symbol,
		trade.Amount, trade.Total, quoteAsset)
	return nil
}
