package strategy

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/nhsiciliano/bot-binance-nh/internal/models"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
)

// Analyzer собирает снапшот индикаторов по серии свечей и сводит
// частные сигналы в общий балл: >= +2 покупка, <= -2 продажа.
type Analyzer struct {
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BBPeriod      int
	BBStdDev      float64
	EMAShort      int
	EMALong       int
}

func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{
		RSIPeriod:     cfg.RSIPeriod,
		RSIOversold:   cfg.RSIOversold,
		RSIOverbought: cfg.RSIOverbought,
		MACDFast:      cfg.MACDFast,
		MACDSlow:      cfg.MACDSlow,
		MACDSignal:    cfg.MACDSignal,
		BBPeriod:      cfg.BBPeriod,
		BBStdDev:      cfg.BBStdDev,
		EMAShort:      cfg.EMAShort,
		EMALong:       cfg.EMALong,
	}
}

func (a *Analyzer) minCandles() int {
	n := a.MACDSlow + a.MACDSignal
	if a.BBPeriod+1 > n {
		n = a.BBPeriod + 1
	}
	if a.RSIPeriod+1 > n {
		n = a.RSIPeriod + 1
	}
	// длинной EMA нужна вся её история, иначе тренд-фильтр недопрогрет
	if a.EMALong+1 > n {
		n = a.EMALong + 1
	}
	return n
}

func (a *Analyzer) Parameters() models.Parameters {
	return models.Parameters{
		RSIPeriod:     a.RSIPeriod,
		RSIOversold:   a.RSIOversold,
		RSIOverbought: a.RSIOverbought,
		MACDFast:      a.MACDFast,
		MACDSlow:      a.MACDSlow,
		MACDSignal:    a.MACDSignal,
		BBPeriod:      a.BBPeriod,
		BBStdDev:      a.BBStdDev,
		EMAShort:      a.EMAShort,
		EMALong:       a.EMALong,
	}
}

func (a *Analyzer) Analyze(symbol, timeframe string, candles []models.Candle) (*models.Snapshot, error) {
	if len(candles) < a.minCandles() {
		return nil, errors.Errorf("not enough candles for %s: have %d, need %d",
			symbol, len(candles), a.minCandles())
	}

	closes := models.Closes(candles)
	cur := len(closes) - 1
	prev := cur - 1

	rsi := RSI(closes, a.RSIPeriod)
	macdLine, macdSig, macdHist := MACD(closes, a.MACDFast, a.MACDSlow, a.MACDSignal)
	bbUp, bbMid, bbLow := Bollinger(closes, a.BBPeriod, a.BBStdDev)
	emaShort := EMA(closes, a.EMAShort)
	emaLong := EMA(closes, a.EMALong)

	snap := &models.Snapshot{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Candle:     candles[cur],
		RSI:        rsi[cur],
		MACD:       macdLine[cur],
		MACDSignal: macdSig[cur],
		MACDHist:   macdHist[cur],
		EMAShort:   emaShort[cur],
		EMALong:    emaLong[cur],
		BBUpper:    bbUp[cur],
		BBMiddle:   bbMid[cur],
		BBLower:    bbLow[cur],
		RSISide:    models.SideNeutral,
		MACDSide:   models.SideNeutral,
		BBSide:     models.SideNeutral,
		Combined:   models.SideNeutral,
	}

	var strength float64
	addReason := func(format string, args ...any) {
		snap.Reasons = append(snap.Reasons, fmt.Sprintf(format, args...))
	}

	// RSI
	switch {
	case snap.RSI < a.RSIOversold:
		snap.RSISide = models.SideBuy
		strength++
		addReason("RSI oversold (%.2f < %.0f)", snap.RSI, a.RSIOversold)
	case snap.RSI > a.RSIOverbought:
		snap.RSISide = models.SideSell
		strength--
		addReason("RSI overbought (%.2f > %.0f)", snap.RSI, a.RSIOverbought)
	}

	// MACD-гистограмма: кросс целым баллом, усиление — половинкой
	hist, prevHist := macdHist[cur], macdHist[prev]
	switch {
	case hist > 0 && prevHist <= 0:
		snap.MACDSide = models.SideBuy
		strength++
		addReason("MACD bullish cross (%.6f)", hist)
	case hist > 0 && hist > prevHist:
		snap.MACDSide = models.SideBuy
		strength += 0.5
		addReason("MACD strengthening (%.6f > %.6f)", hist, prevHist)
	case hist < 0 && prevHist >= 0:
		snap.MACDSide = models.SideSell
		strength--
		addReason("MACD bearish cross (%.6f)", hist)
	case hist < 0 && hist < prevHist:
		snap.MACDSide = models.SideSell
		strength -= 0.5
		addReason("MACD weakening (%.6f < %.6f)", hist, prevHist)
	}

	// Bollinger: касание полос целым баллом, кросс средней — половинкой.
	// При сжатых полосах (ширина < 0.8 средней за 5 периодов) кросс средней
	// не считаем: диапазон узкий, пробой средней ничего не значит.
	close_, prevClose := closes[cur], closes[prev]
	if !math.IsNaN(bbLow[cur]) && !math.IsNaN(bbUp[cur]) {
		switch {
		case close_ <= bbLow[cur]*1.005: // в пределах 0.5% от нижней полосы
			snap.BBSide = models.SideBuy
			strength++
			addReason("price at/below lower band (%.4f <= %.4f)", close_, bbLow[cur])
		case close_ >= bbUp[cur]*0.995:
			snap.BBSide = models.SideSell
			strength--
			addReason("price at/above upper band (%.4f >= %.4f)", close_, bbUp[cur])
		case bandsCompressed(bbUp, bbLow, cur):
			// нейтрально
		case close_ > bbMid[cur] && prevClose <= bbMid[prev]:
			snap.BBSide = models.SideBuy
			strength += 0.5
			addReason("bullish middle-band cross")
		case close_ < bbMid[cur] && prevClose >= bbMid[prev]:
			snap.BBSide = models.SideSell
			strength -= 0.5
			addReason("bearish middle-band cross")
		}
	}

	snap.Strength = strength
	switch {
	case strength >= 2:
		snap.Combined = models.SideBuy
	case strength <= -2:
		snap.Combined = models.SideSell
	}
	return snap, nil
}
